package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/govfin/ledger/internal/ledger"
	"github.com/govfin/ledger/internal/service/entry"
)

const dateLayout = "2006-01-02"

// --- requests ---

type postCategoryRequest struct {
	Kind               ledger.Kind `json:"kind"`
	Name               string      `json:"name"`
	DefaultAmountMinor int64       `json:"default_amount_minor"`
	LinkedCategoryID   *uuid.UUID  `json:"linked_category_id"`
}

type updateCategoryRequest struct {
	Name               string `json:"name"`
	DefaultAmountMinor int64  `json:"default_amount_minor"`
}

type postEntryRequest struct {
	Kind         ledger.Kind `json:"kind"`
	AmountMinor  int64       `json:"amount_minor"`
	SettledMinor int64       `json:"settled_minor"`
	Date         string      `json:"date"`
	Source       string      `json:"source"`
	Notes        string      `json:"notes"`
	CategoryID   *uuid.UUID  `json:"category_id"`
}

type updateEntryRequest struct {
	AmountMinor  int64  `json:"amount_minor"`
	Date         string `json:"date"`
	Source       string `json:"source"`
	Notes        string `json:"notes"`
	PaymentMinor *int64 `json:"payment_minor"`
}

type accountRequest struct {
	Subject   string `json:"subject,omitempty"`
	PublicID  string `json:"public_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	BirthDate string `json:"birth_date,omitempty"`
	Address   string `json:"address,omitempty"`
}

// --- responses ---

type categoryResponse struct {
	ID                 uuid.UUID   `json:"id"`
	Kind               ledger.Kind `json:"kind"`
	Name               string      `json:"name"`
	DefaultAmountMinor int64       `json:"default_amount_minor"`
	LinkedCategoryID   *uuid.UUID  `json:"linked_category_id,omitempty"`
}

type entryResponse struct {
	ID               uuid.UUID   `json:"id"`
	Kind             ledger.Kind `json:"kind"`
	AmountMinor      int64       `json:"amount_minor"`
	SettledMinor     int64       `json:"settled_minor"`
	OutstandingMinor int64       `json:"outstanding_minor"`
	Date             string      `json:"date"`
	Source           string      `json:"source"`
	Notes            string      `json:"notes,omitempty"`
	CategoryID       *uuid.UUID  `json:"category_id,omitempty"`
	GeneratedFrom    *uuid.UUID  `json:"generated_from,omitempty"`
}

type createEntryResponse struct {
	Entry     entryResponse  `json:"entry"`
	Generated *entryResponse `json:"generated,omitempty"`
}

type payAllResponse struct {
	Entry          entryResponse `json:"entry"`
	AlreadySettled bool          `json:"already_settled"`
}

type totalsResponse struct {
	Currency     string `json:"currency"`
	IncomeMinor  int64  `json:"income_minor"`
	ExpenseMinor int64  `json:"expense_minor"`
}

type rollupsResponse struct {
	All   totalsResponse `json:"all"`
	Month totalsResponse `json:"month"`
	Year  totalsResponse `json:"year"`
}

type accountResponse struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"subject"`
	PublicID  string    `json:"public_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	BirthDate string    `json:"birth_date,omitempty"`
	Address   string    `json:"address,omitempty"`
}

type statementResponse struct {
	Account      accountResponse `json:"account"`
	Incomes      []entryResponse `json:"incomes"`
	Expenses     []entryResponse `json:"expenses"`
	TotalIncome  totalsResponse  `json:"total_income"`
	TotalExpense totalsResponse  `json:"total_expense"`
}

type accountEntryResponse struct {
	entryResponse
	PublicID string `json:"public_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type searchResponse struct {
	Items      []accountEntryResponse `json:"items"`
	TotalMinor int64                  `json:"total_minor"`
	Currency   string                 `json:"currency"`
}

// --- converters ---

func toCategoryResponse(c ledger.Category) categoryResponse {
	return categoryResponse{
		ID:                 c.ID,
		Kind:               c.Kind,
		Name:               c.Name,
		DefaultAmountMinor: c.DefaultAmountMinor,
		LinkedCategoryID:   c.LinkedCategoryID,
	}
}

func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		ID:               e.ID,
		Kind:             e.Kind,
		AmountMinor:      e.AmountMinor,
		SettledMinor:     e.SettledMinor,
		OutstandingMinor: e.OutstandingMinor(),
		Date:             e.Date.Format(dateLayout),
		Source:           e.Source,
		Notes:            e.Notes,
		CategoryID:       e.CategoryID,
		GeneratedFrom:    e.GeneratedFrom,
	}
}

func toAccountResponse(a ledger.Account) accountResponse {
	resp := accountResponse{
		ID:       a.ID,
		Subject:  a.Subject,
		PublicID: a.PublicID,
		FullName: a.FullName,
		Email:    a.Email,
		Address:  a.Address,
	}
	if a.BirthDate != nil {
		resp.BirthDate = a.BirthDate.Format(dateLayout)
	}
	return resp
}

func toTotalsResponse(t entry.Totals) totalsResponse {
	return totalsResponse{
		Currency:     amountCurrency(t.Income),
		IncomeMinor:  amountMinor(t.Income),
		ExpenseMinor: amountMinor(t.Expense),
	}
}

func amountMinor(a money.Amount) int64 {
	v, _ := a.MinorUnits()
	return v
}

func amountCurrency(a money.Amount) string {
	return a.Curr().Code()
}

func toAccountDomain(req accountRequest) (ledger.Account, error) {
	a := ledger.Account{
		Subject:  req.Subject,
		PublicID: req.PublicID,
		FullName: req.FullName,
		Email:    req.Email,
		Address:  req.Address,
	}
	if req.BirthDate != "" {
		t, err := time.Parse(dateLayout, req.BirthDate)
		if err != nil {
			return ledger.Account{}, errors.New("birth_date must be YYYY-MM-DD")
		}
		bd := ledger.DateOnly(t)
		a.BirthDate = &bd
	}
	return a, nil
}

// parseDate parses a required YYYY-MM-DD value.
func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return ledger.DateOnly(t), nil
}

// parseDateParam parses an optional YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, errors.New(name + " must be YYYY-MM-DD")
	}
	return &t, nil
}

// parseKindParam parses a required kind query parameter.
func parseKindParam(r *http.Request) (ledger.Kind, error) {
	k := ledger.Kind(r.URL.Query().Get("kind"))
	if !k.Valid() {
		return "", errors.New("kind must be income or expense")
	}
	return k, nil
}
