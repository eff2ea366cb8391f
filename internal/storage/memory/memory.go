package memory

// Package memory provides a simple in-memory implementation used for
// development and tests. It mirrors the Postgres store's semantics, including
// ownership scoping and the atomicity of the two multi-statement operations.
import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/govfin/ledger/internal/errs"
	"github.com/govfin/ledger/internal/ledger"
)

// entryKey tracks ordering for entries per account: sorted asc by (Date, ID)
type entryKey struct {
	Date time.Time
	ID   uuid.UUID
}

// Store is an in-memory implementation of the repository and writer
// interfaces used by the services. It is guarded by an RWMutex.
type Store struct {
	mu         sync.RWMutex
	accounts   map[uuid.UUID]ledger.Account
	bySubject  map[string]uuid.UUID
	categories map[uuid.UUID]ledger.Category
	entries    map[uuid.UUID]*ledger.Entry
	// Per-account sorted index of entries for ordered scans
	entryKeysByAccount map[uuid.UUID][]entryKey

	// Failure injection for transactional paths; the operation observes the
	// error before any write, modeling a rolled-back transaction.
	failCascade error
	failEntryTx error
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:           make(map[uuid.UUID]ledger.Account),
		bySubject:          make(map[string]uuid.UUID),
		categories:         make(map[uuid.UUID]ledger.Category),
		entries:            make(map[uuid.UUID]*ledger.Entry),
		entryKeysByAccount: make(map[uuid.UUID][]entryKey),
	}
}

// FailNextCascade makes the next UpdateCategoryCascade fail atomically.
func (s *Store) FailNextCascade(err error) { s.mu.Lock(); s.failCascade = err; s.mu.Unlock() }

// FailNextEntryTx makes the next CreateEntryWithGenerated fail atomically.
func (s *Store) FailNextEntryTx(err error) { s.mu.Lock(); s.failEntryTx = err; s.mu.Unlock() }

// --- Accounts ---

func (s *Store) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySubject[a.Subject]; ok {
		return ledger.Account{}, errs.ErrConflict
	}
	for _, other := range s.accounts {
		if other.PublicID == a.PublicID {
			return ledger.Account{}, errs.ErrConflict
		}
	}
	s.accounts[a.ID] = a
	s.bySubject[a.Subject] = a.ID
	return a, nil
}

func (s *Store) AccountBySubject(_ context.Context, subject string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySubject[subject]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) GetAccount(_ context.Context, accountID uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s *Store) UpdateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.accounts[a.ID]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	for id, other := range s.accounts {
		if id != a.ID && other.PublicID == a.PublicID {
			return ledger.Account{}, errs.ErrConflict
		}
	}
	a.Subject = old.Subject
	s.accounts[a.ID] = a
	return a, nil
}

// DeleteAccount removes the account and cascades its categories and entries.
func (s *Store) DeleteAccount(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return errs.ErrNotFound
	}
	delete(s.accounts, accountID)
	delete(s.bySubject, a.Subject)
	for id, c := range s.categories {
		if c.AccountID == accountID {
			delete(s.categories, id)
		}
	}
	for id, e := range s.entries {
		if e.AccountID == accountID {
			delete(s.entries, id)
		}
	}
	delete(s.entryKeysByAccount, accountID)
	return nil
}

// --- Categories ---

func (s *Store) CreateCategory(_ context.Context, c ledger.Category) (ledger.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, accountID, categoryID uuid.UUID) (ledger.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[categoryID]
	if !ok || c.AccountID != accountID {
		return ledger.Category{}, errs.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, accountID uuid.UUID, kind ledger.Kind) ([]ledger.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Category, 0)
	for _, c := range s.categories {
		if c.AccountID == accountID && c.Kind == kind {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CategoryNameTaken(_ context.Context, accountID uuid.UUID, kind ledger.Kind, name string, exclude uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.AccountID == accountID && c.Kind == kind && c.ID != exclude && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// UpdateCategoryCascade updates the category row and rewrites the source of
// every entry referencing it. Both happen under one lock, all or nothing.
func (s *Store) UpdateCategoryCascade(_ context.Context, c ledger.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCascade; err != nil {
		s.failCascade = nil
		return err
	}
	old, ok := s.categories[c.ID]
	if !ok || old.AccountID != c.AccountID {
		return errs.ErrNotFound
	}
	c.Kind = old.Kind
	c.LinkedCategoryID = old.LinkedCategoryID
	s.categories[c.ID] = c
	for _, e := range s.entries {
		if e.AccountID == c.AccountID && e.Kind == c.Kind && e.CategoryID != nil && *e.CategoryID == c.ID {
			e.Source = c.Name
		}
	}
	return nil
}

// DeleteCategory removes the category. Entries keep their historical source
// text with a nulled reference; income categories pointing at a deleted
// expense category lose the link, never the row.
func (s *Store) DeleteCategory(_ context.Context, accountID, categoryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[categoryID]
	if !ok || c.AccountID != accountID {
		return errs.ErrNotFound
	}
	delete(s.categories, categoryID)
	for id, other := range s.categories {
		if other.LinkedCategoryID != nil && *other.LinkedCategoryID == categoryID {
			other.LinkedCategoryID = nil
			s.categories[id] = other
		}
	}
	for _, e := range s.entries {
		if e.CategoryID != nil && *e.CategoryID == categoryID {
			e.CategoryID = nil
		}
	}
	return nil
}

// --- Entries ---

func (s *Store) CreateEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertEntryLocked(e)
	return e, nil
}

func (s *Store) CreateEntryWithGenerated(_ context.Context, e ledger.Entry, gen *ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failEntryTx; err != nil {
		s.failEntryTx = nil
		return ledger.Entry{}, err
	}
	s.insertEntryLocked(e)
	if gen != nil {
		s.insertEntryLocked(*gen)
	}
	return e, nil
}

func (s *Store) GetEntry(_ context.Context, accountID, entryID uuid.UUID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok || e.AccountID != accountID {
		return ledger.Entry{}, errs.ErrNotFound
	}
	return *e, nil
}

func (s *Store) ListEntries(_ context.Context, accountID uuid.UUID, kind ledger.Kind, from, to *time.Time) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Entry, 0)
	for _, k := range s.entryKeysByAccount[accountID] {
		e, ok := s.entries[k.ID]
		if !ok || e.Kind != kind {
			continue
		}
		if !inRange(e.Date, from, to) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *Store) UpdateEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.entries[e.ID]
	if !ok || old.AccountID != e.AccountID {
		return ledger.Entry{}, errs.ErrNotFound
	}
	if !old.Date.Equal(e.Date) {
		s.removeEntryIndexLocked(e.AccountID, entryKey{Date: old.Date, ID: e.ID})
		s.insertEntryIndexLocked(e.AccountID, entryKey{Date: e.Date, ID: e.ID})
	}
	cp := e
	s.entries[e.ID] = &cp
	return e, nil
}

func (s *Store) DeleteEntry(_ context.Context, accountID, entryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.AccountID != accountID {
		return errs.ErrNotFound
	}
	s.removeEntryIndexLocked(accountID, entryKey{Date: e.Date, ID: entryID})
	delete(s.entries, entryID)
	return nil
}

func (s *Store) HasGeneratedExpense(_ context.Context, accountID, categoryID uuid.UUID, date time.Time, amountMinor int64, source string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.AccountID != accountID || e.Kind != ledger.KindExpense || e.GeneratedFrom == nil {
			continue
		}
		if e.CategoryID == nil || *e.CategoryID != categoryID || !e.Date.Equal(date) || e.AmountMinor != amountMinor {
			continue
		}
		origin, ok := s.entries[*e.GeneratedFrom]
		if ok && origin.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) SearchEntries(_ context.Context, kind ledger.Kind, q string, from, to *time.Time) ([]ledger.AccountEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q = strings.ToLower(q)
	out := make([]ledger.AccountEntry, 0)
	for _, e := range s.entries {
		if e.Kind != kind || !inRange(e.Date, from, to) {
			continue
		}
		a, ok := s.accounts[e.AccountID]
		if !ok {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(a.FullName), q) &&
			!strings.Contains(strings.ToLower(a.PublicID), q) &&
			!strings.Contains(strings.ToLower(a.Email), q) {
			continue
		}
		out = append(out, ledger.AccountEntry{Entry: *e, PublicID: a.PublicID, FullName: a.FullName, Email: a.Email})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// --- internals ---

func (s *Store) insertEntryLocked(e ledger.Entry) {
	cp := e
	s.entries[e.ID] = &cp
	s.insertEntryIndexLocked(e.AccountID, entryKey{Date: e.Date, ID: e.ID})
}

// insertEntryIndexLocked inserts k into the per-account sorted index, keeping
// order asc by (Date, ID). Caller must hold s.mu (write lock).
func (s *Store) insertEntryIndexLocked(accountID uuid.UUID, k entryKey) {
	keys := s.entryKeysByAccount[accountID]
	i := sort.Search(len(keys), func(i int) bool {
		if keys[i].Date.After(k.Date) {
			return true
		}
		if keys[i].Date.Equal(k.Date) {
			return keys[i].ID.String() > k.ID.String()
		}
		return false
	})
	if i == len(keys) {
		s.entryKeysByAccount[accountID] = append(keys, k)
		return
	}
	keys = append(keys, entryKey{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	s.entryKeysByAccount[accountID] = keys
}

func (s *Store) removeEntryIndexLocked(accountID uuid.UUID, k entryKey) {
	keys := s.entryKeysByAccount[accountID]
	for i := range keys {
		if keys[i].ID == k.ID {
			s.entryKeysByAccount[accountID] = append(keys[:i], keys[i+1:]...)
			return
		}
	}
}

func inRange(d time.Time, from, to *time.Time) bool {
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}
