package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Kind separates the two sides of a personal ledger.
type Kind string

const (
	// KindIncome records money collected by the account holder.
	KindIncome Kind = "income"
	// KindExpense records money paid out by the account holder.
	KindExpense Kind = "expense"
)

// Valid reports whether k is one of the two supported entry kinds.
func (k Kind) Valid() bool { return k == KindIncome || k == KindExpense }

// Account is the ledger owner, tied one-to-one with an identity principal.
type Account struct {
	ID uuid.UUID
	// Subject is the identity principal identifier. Immutable after creation.
	Subject string
	// PublicID is the uniquely-constrained 11-character citizen identifier.
	PublicID  string
	FullName  string
	Email     string
	BirthDate *time.Time
	Address   string
}

// Category is a named template for recurring entries, scoped to one account.
// Income categories may link to an expense category of the same account; the
// link drives auto-generation of a companion expense when an income is filed.
type Category struct {
	ID                 uuid.UUID
	AccountID          uuid.UUID
	Kind               Kind
	Name               string
	DefaultAmountMinor int64
	// LinkedCategoryID points an income category at an expense category.
	// Always nil for expense categories.
	LinkedCategoryID *uuid.UUID
}

// Entry is a single income or expense record. Amounts are fixed 2-decimal
// values carried as minor units; the display currency is configuration only.
type Entry struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Kind      Kind
	// AmountMinor is the full amount of the entry.
	AmountMinor int64
	// SettledMinor is the part already collected (income) or paid (expense).
	// Invariant: 0 <= SettledMinor <= AmountMinor after every mutation.
	SettledMinor int64
	// Date is a calendar date; the time-of-day component is always midnight UTC.
	Date   time.Time
	Source string
	Notes  string
	// CategoryID references a category of the matching kind, when any.
	CategoryID *uuid.UUID
	// GeneratedFrom backlinks an auto-created expense to the income entry
	// that triggered it. Nil for everything entered by hand.
	GeneratedFrom *uuid.UUID
}

// OutstandingMinor returns the not-yet-settled amount, floored at zero.
// It is derived on demand and never persisted.
func (e Entry) OutstandingMinor() int64 {
	if out := e.AmountMinor - e.SettledMinor; out > 0 {
		return out
	}
	return 0
}

// Deferred reports whether the entry still carries an outstanding amount.
func (e Entry) Deferred() bool { return e.OutstandingMinor() > 0 }

// AccountEntry couples an entry with its owning account for cross-account
// admin listings and exports.
type AccountEntry struct {
	Entry
	PublicID string
	FullName string
	Email    string
}

// DateOnly strips the time-of-day component, keeping a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClampSettled bounds a settled amount to [0, amount].
func ClampSettled(settled, amount int64) int64 {
	if settled < 0 {
		return 0
	}
	if settled > amount {
		return amount
	}
	return settled
}
