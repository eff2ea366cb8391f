package postgres

// Package postgres provides a pgx-backed storage implementation that
// satisfies the repository and writer interfaces used by the services.
//
// It is intentionally small and explicit. The schema lives in the embedded
// migrations; this package maps between domain entities and SQL rows and runs
// the necessary statements and transactions. Every query carries the owning
// account id so ownership is enforced at the store, not above it.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/govfin/ledger/internal/errs"
	"github.com/govfin/ledger/internal/ledger"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string and
// applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := RunMigrations(dsn); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Accounts ---

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	_, err := s.pool.Exec(ctx, `
        insert into accounts (id, subject, public_id, full_name, email, birth_date, address)
        values ($1,$2,$3,$4,$5,$6,$7)
    `, a.ID, a.Subject, a.PublicID, a.FullName, a.Email, a.BirthDate, a.Address)
	if isUniqueViolation(err) {
		return ledger.Account{}, errs.ErrConflict
	}
	if err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func (s *Store) AccountBySubject(ctx context.Context, subject string) (ledger.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx, `
        select id, subject, public_id, full_name, email, birth_date, address
        from accounts where subject = $1
    `, subject))
}

func (s *Store) GetAccount(ctx context.Context, accountID uuid.UUID) (ledger.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx, `
        select id, subject, public_id, full_name, email, birth_date, address
        from accounts where id = $1
    `, accountID))
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `
        select id, subject, public_id, full_name, email, birth_date, address
        from accounts order by full_name, public_id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		var a ledger.Account
		if err := rows.Scan(&a.ID, &a.Subject, &a.PublicID, &a.FullName, &a.Email, &a.BirthDate, &a.Address); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	ct, err := s.pool.Exec(ctx, `
        update accounts
        set public_id=$1, full_name=$2, email=$3, birth_date=$4, address=$5
        where id=$6
    `, a.PublicID, a.FullName, a.Email, a.BirthDate, a.Address, a.ID)
	if isUniqueViolation(err) {
		return ledger.Account{}, errs.ErrConflict
	}
	if err != nil {
		return ledger.Account{}, err
	}
	if ct.RowsAffected() == 0 {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *Store) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	// categories and entries cascade via FK
	ct, err := s.pool.Exec(ctx, `delete from accounts where id = $1`, accountID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	err := row.Scan(&a.ID, &a.Subject, &a.PublicID, &a.FullName, &a.Email, &a.BirthDate, &a.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

// --- Categories ---

func (s *Store) CreateCategory(ctx context.Context, c ledger.Category) (ledger.Category, error) {
	_, err := s.pool.Exec(ctx, `
        insert into categories (id, account_id, kind, name, default_amount_minor, linked_category_id)
        values ($1,$2,$3,$4,$5,$6)
    `, c.ID, c.AccountID, c.Kind, c.Name, c.DefaultAmountMinor, c.LinkedCategoryID)
	if isUniqueViolation(err) {
		return ledger.Category{}, errs.ErrDuplicateName
	}
	if err != nil {
		return ledger.Category{}, err
	}
	return c, nil
}

func (s *Store) GetCategory(ctx context.Context, accountID, categoryID uuid.UUID) (ledger.Category, error) {
	var c ledger.Category
	err := s.pool.QueryRow(ctx, `
        select id, account_id, kind, name, default_amount_minor, linked_category_id
        from categories where id = $1 and account_id = $2
    `, categoryID, accountID).Scan(&c.ID, &c.AccountID, &c.Kind, &c.Name, &c.DefaultAmountMinor, &c.LinkedCategoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Category{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Category{}, err
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, accountID uuid.UUID, kind ledger.Kind) ([]ledger.Category, error) {
	rows, err := s.pool.Query(ctx, `
        select id, account_id, kind, name, default_amount_minor, linked_category_id
        from categories
        where account_id = $1 and kind = $2
        order by name
    `, accountID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Category, 0)
	for rows.Next() {
		var c ledger.Category
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Kind, &c.Name, &c.DefaultAmountMinor, &c.LinkedCategoryID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CategoryNameTaken(ctx context.Context, accountID uuid.UUID, kind ledger.Kind, name string, exclude uuid.UUID) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx, `
        select exists (
            select 1 from categories
            where account_id = $1 and kind = $2 and lower(name) = lower($3) and id <> $4
        )
    `, accountID, kind, name, exclude).Scan(&taken)
	return taken, err
}

// UpdateCategoryCascade updates the category row and bulk-rewrites the source
// label of every entry referencing it, in one transaction.
func (s *Store) UpdateCategoryCascade(ctx context.Context, c ledger.Category) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
        update categories set name=$1, default_amount_minor=$2
        where id=$3 and account_id=$4
    `, c.Name, c.DefaultAmountMinor, c.ID, c.AccountID)
	if isUniqueViolation(err) {
		return errs.ErrDuplicateName
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `
        update entries set source=$1
        where account_id=$2 and kind=$3 and category_id=$4
    `, c.Name, c.AccountID, c.Kind, c.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) DeleteCategory(ctx context.Context, accountID, categoryID uuid.UUID) error {
	// links and entry references null out via FK; entries keep their source text
	ct, err := s.pool.Exec(ctx, `
        delete from categories where id = $1 and account_id = $2
    `, categoryID, accountID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Entries ---

func (s *Store) CreateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := insertEntry(ctx, s.pool, e); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

// CreateEntryWithGenerated inserts the entry and, when gen is non-nil, the
// auto-generated companion expense in one transaction.
func (s *Store) CreateEntryWithGenerated(ctx context.Context, e ledger.Entry, gen *ledger.Entry) (ledger.Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := insertEntry(ctx, tx, e); err != nil {
		return ledger.Entry{}, err
	}
	if gen != nil {
		if err := insertEntry(ctx, tx, *gen); err != nil {
			return ledger.Entry{}, fmt.Errorf("insert generated expense: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

func (s *Store) GetEntry(ctx context.Context, accountID, entryID uuid.UUID) (ledger.Entry, error) {
	var e ledger.Entry
	err := s.pool.QueryRow(ctx, `
        select id, account_id, kind, amount_minor, settled_minor, date, source, notes, category_id, generated_from
        from entries where id = $1 and account_id = $2
    `, entryID, accountID).Scan(&e.ID, &e.AccountID, &e.Kind, &e.AmountMinor, &e.SettledMinor, &e.Date, &e.Source, &e.Notes, &e.CategoryID, &e.GeneratedFrom)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Entry{}, err
	}
	e.Date = ledger.DateOnly(e.Date)
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, kind ledger.Kind, from, to *time.Time) ([]ledger.Entry, error) {
	q := `
        select id, account_id, kind, amount_minor, settled_minor, date, source, notes, category_id, generated_from
        from entries
        where account_id = $1 and kind = $2
    `
	args := []any{accountID, kind}
	if from != nil {
		args = append(args, *from)
		q += fmt.Sprintf(" and date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		q += fmt.Sprintf(" and date <= $%d", len(args))
	}
	q += " order by date asc, id asc"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Entry, 0)
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.AmountMinor, &e.SettledMinor, &e.Date, &e.Source, &e.Notes, &e.CategoryID, &e.GeneratedFrom); err != nil {
			return nil, err
		}
		e.Date = ledger.DateOnly(e.Date)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UpdateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	ct, err := s.pool.Exec(ctx, `
        update entries
        set amount_minor=$1, settled_minor=$2, date=$3, source=$4, notes=$5
        where id=$6 and account_id=$7
    `, e.AmountMinor, e.SettledMinor, e.Date, e.Source, e.Notes, e.ID, e.AccountID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if ct.RowsAffected() == 0 {
		return ledger.Entry{}, errs.ErrNotFound
	}
	return e, nil
}

func (s *Store) DeleteEntry(ctx context.Context, accountID, entryID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `
        delete from entries where id = $1 and account_id = $2
    `, entryID, accountID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// HasGeneratedExpense checks for an existing auto-generated expense whose
// originating income carries the same source text.
func (s *Store) HasGeneratedExpense(ctx context.Context, accountID, categoryID uuid.UUID, date time.Time, amountMinor int64, source string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        select exists (
            select 1
            from entries e
            join entries o on o.id = e.generated_from
            where e.account_id = $1 and e.kind = 'expense'
              and e.category_id = $2 and e.date = $3 and e.amount_minor = $4
              and o.source = $5
        )
    `, accountID, categoryID, date, amountMinor, source).Scan(&exists)
	return exists, err
}

func (s *Store) SearchEntries(ctx context.Context, kind ledger.Kind, q string, from, to *time.Time) ([]ledger.AccountEntry, error) {
	sql := `
        select e.id, e.account_id, e.kind, e.amount_minor, e.settled_minor, e.date, e.source, e.notes,
               e.category_id, e.generated_from, a.public_id, a.full_name, a.email
        from entries e
        join accounts a on a.id = e.account_id
        where e.kind = $1
    `
	args := []any{kind}
	if from != nil {
		args = append(args, *from)
		sql += fmt.Sprintf(" and e.date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		sql += fmt.Sprintf(" and e.date <= $%d", len(args))
	}
	if q != "" {
		args = append(args, q)
		n := len(args)
		sql += fmt.Sprintf(` and (a.full_name ilike '%%'||$%d||'%%' or a.public_id ilike '%%'||$%d||'%%' or a.email ilike '%%'||$%d||'%%')`, n, n, n)
	}
	sql += " order by e.date asc, e.id asc"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.AccountEntry, 0)
	for rows.Next() {
		var r ledger.AccountEntry
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Kind, &r.AmountMinor, &r.SettledMinor, &r.Date, &r.Source, &r.Notes,
			&r.CategoryID, &r.GeneratedFrom, &r.PublicID, &r.FullName, &r.Email); err != nil {
			return nil, err
		}
		r.Date = ledger.DateOnly(r.Date)
		out = append(out, r)
	}
	return out, rows.Err()
}

// executor is satisfied by both pgxpool.Pool and pgx.Tx.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertEntry(ctx context.Context, ex executor, e ledger.Entry) error {
	_, err := ex.Exec(ctx, `
        insert into entries (id, account_id, kind, amount_minor, settled_minor, date, source, notes, category_id, generated_from)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    `, e.ID, e.AccountID, e.Kind, e.AmountMinor, e.SettledMinor, e.Date, e.Source, e.Notes, e.CategoryID, e.GeneratedFrom)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
