// Package entry implements the ledger entry model and the rules around it:
// settlement clamping, idempotent pay-in-full, auto-generation of linked
// expenses, and the read-side aggregations (totals, rollups, deferred
// listings, activity feeds, admin statements).
package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/govfin/ledger/internal/errs"
	"github.com/govfin/ledger/internal/ledger"
)

type Repo interface {
	GetEntry(ctx context.Context, accountID, entryID uuid.UUID) (ledger.Entry, error)
	// ListEntries returns entries of one kind for an account within the
	// inclusive [from, to] range (either bound may be nil), ordered
	// ascending by (date, id).
	ListEntries(ctx context.Context, accountID uuid.UUID, kind ledger.Kind, from, to *time.Time) ([]ledger.Entry, error)
	GetCategory(ctx context.Context, accountID, categoryID uuid.UUID) (ledger.Category, error)
	// HasGeneratedExpense reports whether an auto-generated expense already
	// exists for (account, category, date, amount) whose originating income
	// carries the given source text.
	HasGeneratedExpense(ctx context.Context, accountID, categoryID uuid.UUID, date time.Time, amountMinor int64, source string) (bool, error)
	// SearchEntries lists entries of one kind across all accounts, joined
	// with the owning account, ordered ascending by (date, id). q filters by
	// account full name, public id or email.
	SearchEntries(ctx context.Context, kind ledger.Kind, q string, from, to *time.Time) ([]ledger.AccountEntry, error)
}

type Writer interface {
	CreateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
	// CreateEntryWithGenerated inserts the entry and, when gen is non-nil,
	// the generated companion in a single transaction.
	CreateEntryWithGenerated(ctx context.Context, e ledger.Entry, gen *ledger.Entry) (ledger.Entry, error)
	UpdateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
	DeleteEntry(ctx context.Context, accountID, entryID uuid.UUID) error
}

// CreateInput carries the fields accepted when recording an entry.
type CreateInput struct {
	AccountID    uuid.UUID
	Kind         ledger.Kind
	AmountMinor  int64
	SettledMinor int64
	Date         time.Time
	Source       string
	Notes        string
	CategoryID   *uuid.UUID
}

// EditInput mutates an existing entry. PaymentMinor, when set, is a delta
// applied to the settled amount after the field edits.
type EditInput struct {
	AccountID    uuid.UUID
	EntryID      uuid.UUID
	AmountMinor  int64
	Date         time.Time
	Source       string
	Notes        string
	PaymentMinor *int64
}

// Totals holds independent per-kind sums in the display currency.
type Totals struct {
	Income  money.Amount
	Expense money.Amount
}

// Rollups are the dashboard sums: all-time, month-to-date and year-to-date.
type Rollups struct {
	All   Totals
	Month Totals
	Year  Totals
}

// Statement is the admin view of one account's ledger.
type Statement struct {
	Account      ledger.Account
	Incomes      []ledger.Entry // date desc, id asc
	Expenses     []ledger.Entry
	TotalIncome  money.Amount
	TotalExpense money.Amount
}

type Service interface {
	// Create records an entry. For incomes filed against a linked category it
	// may atomically create a companion expense, returned as the second
	// value (nil when none was generated or a duplicate was suppressed).
	Create(ctx context.Context, in CreateInput) (ledger.Entry, *ledger.Entry, error)
	Get(ctx context.Context, accountID, entryID uuid.UUID) (ledger.Entry, error)
	Edit(ctx context.Context, in EditInput) (ledger.Entry, error)
	// PayAll settles the full amount. The bool reports "already settled":
	// a repeat call observes outstanding zero and does not write.
	PayAll(ctx context.Context, accountID, entryID uuid.UUID) (ledger.Entry, bool, error)
	Delete(ctx context.Context, accountID, entryID uuid.UUID) error

	List(ctx context.Context, accountID uuid.UUID, kind ledger.Kind, from, to *time.Time) ([]ledger.Entry, error)
	Deferred(ctx context.Context, accountID uuid.UUID, kind ledger.Kind) ([]ledger.Entry, error)
	GetTotals(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (Totals, error)
	GetRollups(ctx context.Context, accountID uuid.UUID, today time.Time) (Rollups, error)
	Activity(ctx context.Context, accountID uuid.UUID, kind *ledger.Kind, q string) ([]ledger.Entry, error)

	AccountLookup
}

// AccountLookup is the admin read surface over any account's ledger.
type AccountLookup interface {
	LedgerFor(ctx context.Context, a ledger.Account, from, to *time.Time) (Statement, error)
	// ExportRows returns the exact row set the exporter serializes:
	// ascending by (date, id).
	ExportRows(ctx context.Context, accountID uuid.UUID, kind ledger.Kind, from, to *time.Time) ([]ledger.Entry, error)
	// Search lists one kind across all accounts for the admin screens,
	// descending by date then ascending by id.
	Search(ctx context.Context, kind ledger.Kind, q string, from, to *time.Time) ([]ledger.AccountEntry, error)
	// SearchExport is the ascending variant serialized by the bulk exporter.
	SearchExport(ctx context.Context, kind ledger.Kind, q string, from, to *time.Time) ([]ledger.AccountEntry, error)
}

type service struct {
	repo     Repo
	writer   Writer
	currency string
}

// New wires the service; currency is the display label used for totals.
func New(repo Repo, writer Writer, currency string) Service {
	return &service{repo: repo, writer: writer, currency: strings.ToUpper(currency)}
}

func (s *service) Create(ctx context.Context, in CreateInput) (ledger.Entry, *ledger.Entry, error) {
	if in.AccountID == uuid.Nil || !in.Kind.Valid() {
		return ledger.Entry{}, nil, errs.ErrInvalid
	}
	if in.AmountMinor < 0 {
		return ledger.Entry{}, nil, errs.Validation("amount must not be negative")
	}
	if in.SettledMinor < 0 || in.SettledMinor > in.AmountMinor {
		return ledger.Entry{}, nil, errs.Validation("settled amount must be between 0 and the amount")
	}
	in.Source = strings.TrimSpace(in.Source)
	if err := checkTextFields(in.Source, in.Notes); err != nil {
		return ledger.Entry{}, nil, err
	}

	var cat *ledger.Category
	if in.CategoryID != nil {
		c, err := s.repo.GetCategory(ctx, in.AccountID, *in.CategoryID)
		if err != nil {
			return ledger.Entry{}, nil, err
		}
		if c.Kind != in.Kind {
			return ledger.Entry{}, nil, errs.Validation("category kind mismatch")
		}
		cat = &c
		if in.Source == "" {
			in.Source = c.Name
		}
	}
	if in.Source == "" {
		return ledger.Entry{}, nil, errs.Validation("source is required")
	}

	e := ledger.Entry{
		ID:           uuid.New(),
		AccountID:    in.AccountID,
		Kind:         in.Kind,
		AmountMinor:  in.AmountMinor,
		SettledMinor: in.SettledMinor,
		Date:         ledger.DateOnly(in.Date),
		Source:       in.Source,
		Notes:        in.Notes,
		CategoryID:   in.CategoryID,
	}

	gen, err := s.buildGenerated(ctx, e, cat)
	if err != nil {
		return ledger.Entry{}, nil, err
	}
	created, err := s.writer.CreateEntryWithGenerated(ctx, e, gen)
	if err != nil {
		return ledger.Entry{}, nil, fmt.Errorf("create entry: %w", err)
	}
	return created, gen, nil
}

// buildGenerated prepares the companion expense for an income filed against a
// linked category. A stale link skips generation silently; an equivalent
// generated expense suppresses the duplicate.
func (s *service) buildGenerated(ctx context.Context, e ledger.Entry, cat *ledger.Category) (*ledger.Entry, error) {
	if e.Kind != ledger.KindIncome || cat == nil || cat.LinkedCategoryID == nil {
		return nil, nil
	}
	linked, err := s.repo.GetCategory(ctx, e.AccountID, *cat.LinkedCategoryID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.HasGeneratedExpense(ctx, e.AccountID, linked.ID, e.Date, linked.DefaultAmountMinor, e.Source)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}
	catID := linked.ID
	origin := e.ID
	return &ledger.Entry{
		ID:            uuid.New(),
		AccountID:     e.AccountID,
		Kind:          ledger.KindExpense,
		AmountMinor:   linked.DefaultAmountMinor,
		SettledMinor:  0,
		Date:          e.Date,
		Source:        linked.Name,
		Notes:         "Auto expense for income: " + e.Source,
		CategoryID:    &catID,
		GeneratedFrom: &origin,
	}, nil
}

func (s *service) Get(ctx context.Context, accountID, entryID uuid.UUID) (ledger.Entry, error) {
	if accountID == uuid.Nil || entryID == uuid.Nil {
		return ledger.Entry{}, errs.ErrInvalid
	}
	return s.repo.GetEntry(ctx, accountID, entryID)
}

func (s *service) Edit(ctx context.Context, in EditInput) (ledger.Entry, error) {
	if in.AccountID == uuid.Nil || in.EntryID == uuid.Nil {
		return ledger.Entry{}, errs.ErrInvalid
	}
	if in.AmountMinor < 0 {
		return ledger.Entry{}, errs.Validation("amount must not be negative")
	}
	if in.PaymentMinor != nil && *in.PaymentMinor < 0 {
		return ledger.Entry{}, errs.ErrNegativePayment
	}
	in.Source = strings.TrimSpace(in.Source)
	if in.Source == "" {
		return ledger.Entry{}, errs.Validation("source is required")
	}
	if err := checkTextFields(in.Source, in.Notes); err != nil {
		return ledger.Entry{}, err
	}

	e, err := s.repo.GetEntry(ctx, in.AccountID, in.EntryID)
	if err != nil {
		return ledger.Entry{}, err
	}

	// Field edits first; the settled amount is re-clamped against the new
	// amount, which may have shrunk in the same request.
	e.AmountMinor = in.AmountMinor
	e.Date = ledger.DateOnly(in.Date)
	e.Source = in.Source
	e.Notes = in.Notes
	if in.PaymentMinor != nil {
		e.SettledMinor += *in.PaymentMinor
	}
	e.SettledMinor = ledger.ClampSettled(e.SettledMinor, e.AmountMinor)

	return s.writer.UpdateEntry(ctx, e)
}

func (s *service) PayAll(ctx context.Context, accountID, entryID uuid.UUID) (ledger.Entry, bool, error) {
	if accountID == uuid.Nil || entryID == uuid.Nil {
		return ledger.Entry{}, false, errs.ErrInvalid
	}
	e, err := s.repo.GetEntry(ctx, accountID, entryID)
	if err != nil {
		return ledger.Entry{}, false, err
	}
	if e.OutstandingMinor() == 0 {
		return e, true, nil
	}
	e.SettledMinor = e.AmountMinor
	e, err = s.writer.UpdateEntry(ctx, e)
	if err != nil {
		return ledger.Entry{}, false, err
	}
	return e, false, nil
}

func (s *service) Delete(ctx context.Context, accountID, entryID uuid.UUID) error {
	if accountID == uuid.Nil || entryID == uuid.Nil {
		return errs.ErrInvalid
	}
	return s.writer.DeleteEntry(ctx, accountID, entryID)
}

func (s *service) List(ctx context.Context, accountID uuid.UUID, kind ledger.Kind, from, to *time.Time) ([]ledger.Entry, error) {
	if accountID == uuid.Nil || !kind.Valid() {
		return nil, errs.ErrInvalid
	}
	from, to = normalizeRange(from, to)
	entries, err := s.repo.ListEntries(ctx, accountID, kind, from, to)
	if err != nil {
		return nil, err
	}
	screenSort(entries)
	return entries, nil
}

func (s *service) Deferred(ctx context.Context, accountID uuid.UUID, kind ledger.Kind) ([]ledger.Entry, error) {
	if accountID == uuid.Nil || !kind.Valid() {
		return nil, errs.ErrInvalid
	}
	entries, err := s.repo.ListEntries(ctx, accountID, kind, nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Entry, 0)
	for _, e := range entries {
		if e.Deferred() {
			out = append(out, e)
		}
	}
	// repo order is already date ascending
	return out, nil
}

func (s *service) GetTotals(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (Totals, error) {
	if accountID == uuid.Nil {
		return Totals{}, errs.ErrInvalid
	}
	from, to = normalizeRange(from, to)
	incomes, err := s.repo.ListEntries(ctx, accountID, ledger.KindIncome, from, to)
	if err != nil {
		return Totals{}, err
	}
	expenses, err := s.repo.ListEntries(ctx, accountID, ledger.KindExpense, from, to)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Income: s.sum(incomes), Expense: s.sum(expenses)}, nil
}

func (s *service) GetRollups(ctx context.Context, accountID uuid.UUID, today time.Time) (Rollups, error) {
	if accountID == uuid.Nil {
		return Rollups{}, errs.ErrInvalid
	}
	day := ledger.DateOnly(today)
	firstOfMonth := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstOfYear := time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	all, err := s.GetTotals(ctx, accountID, nil, nil)
	if err != nil {
		return Rollups{}, err
	}
	month, err := s.GetTotals(ctx, accountID, &firstOfMonth, &day)
	if err != nil {
		return Rollups{}, err
	}
	year, err := s.GetTotals(ctx, accountID, &firstOfYear, &day)
	if err != nil {
		return Rollups{}, err
	}
	return Rollups{All: all, Month: month, Year: year}, nil
}

func (s *service) Activity(ctx context.Context, accountID uuid.UUID, kind *ledger.Kind, q string) ([]ledger.Entry, error) {
	if accountID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	kinds := []ledger.Kind{ledger.KindIncome, ledger.KindExpense}
	if kind != nil {
		if !kind.Valid() {
			return nil, errs.ErrInvalid
		}
		kinds = []ledger.Kind{*kind}
	}
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]ledger.Entry, 0)
	for _, k := range kinds {
		entries, err := s.repo.ListEntries(ctx, accountID, k, nil, nil)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if q == "" || strings.Contains(strings.ToLower(e.Source), q) || strings.Contains(strings.ToLower(e.Notes), q) {
				out = append(out, e)
			}
		}
	}
	screenSort(out)
	return out, nil
}

func (s *service) LedgerFor(ctx context.Context, a ledger.Account, from, to *time.Time) (Statement, error) {
	if a.ID == uuid.Nil {
		return Statement{}, errs.ErrInvalid
	}
	from, to = normalizeRange(from, to)
	incomes, err := s.repo.ListEntries(ctx, a.ID, ledger.KindIncome, from, to)
	if err != nil {
		return Statement{}, err
	}
	expenses, err := s.repo.ListEntries(ctx, a.ID, ledger.KindExpense, from, to)
	if err != nil {
		return Statement{}, err
	}
	st := Statement{
		Account:      a,
		TotalIncome:  s.sum(incomes),
		TotalExpense: s.sum(expenses),
	}
	screenSort(incomes)
	screenSort(expenses)
	st.Incomes = incomes
	st.Expenses = expenses
	return st, nil
}

func (s *service) ExportRows(ctx context.Context, accountID uuid.UUID, kind ledger.Kind, from, to *time.Time) ([]ledger.Entry, error) {
	if accountID == uuid.Nil || !kind.Valid() {
		return nil, errs.ErrInvalid
	}
	// repo order is the export order: ascending by (date, id)
	from, to = normalizeRange(from, to)
	return s.repo.ListEntries(ctx, accountID, kind, from, to)
}

func (s *service) Search(ctx context.Context, kind ledger.Kind, q string, from, to *time.Time) ([]ledger.AccountEntry, error) {
	rows, err := s.SearchExport(ctx, kind, q, from, to)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.After(rows[j].Date)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
	return rows, nil
}

func (s *service) SearchExport(ctx context.Context, kind ledger.Kind, q string, from, to *time.Time) ([]ledger.AccountEntry, error) {
	if !kind.Valid() {
		return nil, errs.ErrInvalid
	}
	from, to = normalizeRange(from, to)
	return s.repo.SearchEntries(ctx, kind, strings.TrimSpace(q), from, to)
}

// sum folds entry amounts into a money.Amount in the display currency.
func (s *service) sum(entries []ledger.Entry) money.Amount {
	total, _ := money.NewAmountFromMinorUnits(s.currency, 0)
	for _, e := range entries {
		amt, err := money.NewAmountFromMinorUnits(s.currency, e.AmountMinor)
		if err != nil {
			continue
		}
		if v, err := total.Add(amt); err == nil {
			total = v
		}
	}
	return total
}

// screenSort orders entries for on-screen listings: date descending, id
// ascending within a day.
func screenSort(entries []ledger.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ID.String() < entries[j].ID.String()
	})
}

// normalizeRange floors both bounds to calendar dates.
func normalizeRange(from, to *time.Time) (*time.Time, *time.Time) {
	if from != nil {
		f := ledger.DateOnly(*from)
		from = &f
	}
	if to != nil {
		t := ledger.DateOnly(*to)
		to = &t
	}
	return from, to
}

func checkTextFields(source, notes string) error {
	if len(source) > 100 {
		return errs.Validation("source must be at most 100 characters")
	}
	if len(notes) > 300 {
		return errs.Validation("notes must be at most 300 characters")
	}
	return nil
}
