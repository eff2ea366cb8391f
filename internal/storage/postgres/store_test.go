package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/govfin/ledger/internal/errs"
	"github.com/govfin/ledger/internal/ledger"
	"github.com/govfin/ledger/internal/natid"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

func mustOpen(t *testing.T, dsn string) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func truncateAll(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = s.pool.Exec(ctx, `truncate table entries, categories, accounts cascade`)
}

func testAccount(subject string) ledger.Account {
	return ledger.Account{
		ID:       uuid.New(),
		Subject:  subject,
		PublicID: natid.Derive(subject),
		FullName: "Test Person",
		Email:    subject + "@example.test",
	}
}

func TestStore_AccountsAndCategories(t *testing.T) {
	dsn := getTestDSN(t)
	s := mustOpen(t, dsn)
	defer s.Close()
	truncateAll(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}

	a, err := s.CreateAccount(ctx, testAccount("subj-store-001"))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	// Duplicate subject must surface a conflict.
	dup := testAccount("subj-store-001")
	dup.PublicID = "N0000000099"
	if _, err := s.CreateAccount(ctx, dup); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate subject, got %v", err)
	}

	got, err := s.AccountBySubject(ctx, a.Subject)
	if err != nil || got.ID != a.ID {
		t.Fatalf("account by subject: %v %+v", err, got)
	}

	got.FullName = "Renamed Person"
	if _, err := s.UpdateAccount(ctx, got); err != nil {
		t.Fatalf("update account: %v", err)
	}

	// Categories: create, uniqueness is case-insensitive per kind
	c, err := s.CreateCategory(ctx, ledger.Category{
		ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindIncome, Name: "Salary", DefaultAmountMinor: 0,
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := s.CreateCategory(ctx, ledger.Category{
		ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindIncome, Name: "salary",
	}); !errors.Is(err, errs.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	taken, err := s.CategoryNameTaken(ctx, a.ID, ledger.KindIncome, "SALARY", uuid.Nil)
	if err != nil || !taken {
		t.Fatalf("name taken: %v taken=%v", err, taken)
	}
	taken, err = s.CategoryNameTaken(ctx, a.ID, ledger.KindIncome, "Salary", c.ID)
	if err != nil || taken {
		t.Fatalf("own row should be excluded: %v taken=%v", err, taken)
	}
}

func TestStore_RenameCascade(t *testing.T) {
	dsn := getTestDSN(t)
	s := mustOpen(t, dsn)
	defer s.Close()
	truncateAll(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := s.CreateAccount(ctx, testAccount("subj-store-002"))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	c, err := s.CreateCategory(ctx, ledger.Category{
		ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindExpense, Name: "Rent",
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	e := ledger.Entry{
		ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindExpense,
		AmountMinor: 50000, Date: ledger.DateOnly(time.Now().UTC()),
		Source: "Rent", CategoryID: &c.ID,
	}
	if _, err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	c.Name = "Housing"
	if err := s.UpdateCategoryCascade(ctx, c); err != nil {
		t.Fatalf("rename cascade: %v", err)
	}

	gotE, err := s.GetEntry(ctx, a.ID, e.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if gotE.Source != "Housing" {
		t.Fatalf("entry source not rewritten: %q", gotE.Source)
	}
}

func TestStore_EntriesAndGeneration(t *testing.T) {
	dsn := getTestDSN(t)
	s := mustOpen(t, dsn)
	defer s.Close()
	truncateAll(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := s.CreateAccount(ctx, testAccount("subj-store-003"))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	exp, err := s.CreateCategory(ctx, ledger.Category{
		ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindExpense, Name: "Tithe", DefaultAmountMinor: 10000,
	})
	if err != nil {
		t.Fatalf("create expense category: %v", err)
	}

	day := ledger.DateOnly(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	income := ledger.Entry{
		ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindIncome,
		AmountMinor: 100000, Date: day, Source: "March salary",
	}
	gen := ledger.Entry{
		ID: uuid.New(), AccountID: a.ID, Kind: ledger.KindExpense,
		AmountMinor: 10000, Date: day, Source: exp.Name,
		CategoryID: &exp.ID, GeneratedFrom: &income.ID,
	}
	if _, err := s.CreateEntryWithGenerated(ctx, income, &gen); err != nil {
		t.Fatalf("create with generated: %v", err)
	}

	has, err := s.HasGeneratedExpense(ctx, a.ID, exp.ID, day, 10000, "March salary")
	if err != nil || !has {
		t.Fatalf("expected generated expense to be found: %v has=%v", err, has)
	}
	has, err = s.HasGeneratedExpense(ctx, a.ID, exp.ID, day, 10000, "April salary")
	if err != nil || has {
		t.Fatalf("different origin source must not match: %v has=%v", err, has)
	}

	// Range listing is inclusive on both bounds and ordered date asc, id asc.
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	list, err := s.ListEntries(ctx, a.ID, ledger.KindExpense, &from, &to)
	if err != nil || len(list) != 1 {
		t.Fatalf("list expenses: %v n=%d", err, len(list))
	}
	outside := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	list, err = s.ListEntries(ctx, a.ID, ledger.KindExpense, &outside, nil)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list outside range: %v n=%d", err, len(list))
	}

	// Cross-account search joins the account fields.
	rows, err := s.SearchEntries(ctx, ledger.KindIncome, "Test Person", nil, nil)
	if err != nil || len(rows) != 1 {
		t.Fatalf("search: %v n=%d", err, len(rows))
	}
	if rows[0].PublicID != a.PublicID || rows[0].Email != a.Email {
		t.Fatalf("search row missing account fields: %+v", rows[0])
	}
	rows, err = s.SearchEntries(ctx, ledger.KindIncome, "no such person", nil, nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("search should filter: %v n=%d", err, len(rows))
	}

	// Ownership scoping: a foreign account id never sees these rows.
	if _, err := s.GetEntry(ctx, uuid.New(), income.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign account, got %v", err)
	}

	if err := s.DeleteEntry(ctx, a.ID, income.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	if err := s.DeleteEntry(ctx, a.ID, income.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("double delete should be ErrNotFound, got %v", err)
	}
}
