package httpapi

import (
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/govfin/ledger/internal/ledger"
)

func matchesAccount(a ledger.Account, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.FullName), q) ||
		strings.Contains(strings.ToLower(a.PublicID), q) ||
		strings.Contains(strings.ToLower(a.Email), q)
}

// adminListAccounts handles GET /v1/admin/accounts?q=. The optional filter
// matches full name, public id or email, case-insensitively.
func (s *Server) adminListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accountSvc.List(r.Context())
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	q := r.URL.Query().Get("q")
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		if !matchesAccount(a, q) {
			continue
		}
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}

// adminPostAccount handles POST /v1/admin/accounts
func (s *Server) adminPostAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	a, err := toAccountDomain(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	created, err := s.accountSvc.Create(r.Context(), a)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(created))
}

// adminGetAccount handles GET /v1/admin/accounts/{id}
func (s *Server) adminGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	a, err := s.accountSvc.Get(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(a))
}

// adminUpdateAccount handles PATCH /v1/admin/accounts/{id}. The subject is
// immutable; the service keeps the stored one.
func (s *Server) adminUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	a, err := toAccountDomain(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	a.ID = id
	updated, err := s.accountSvc.Update(r.Context(), a)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(updated))
}

// adminDeleteAccount handles DELETE /v1/admin/accounts/{id}. Categories and
// entries go with the account.
func (s *Server) adminDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	if err := s.accountSvc.Delete(r.Context(), id); err != nil {
		s.writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminAccountLedger handles GET /v1/admin/accounts/{id}/ledger?from=&to=
func (s *Server) adminAccountLedger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}
	from, err := parseDateParam(r, "from")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	a, err := s.accountSvc.Get(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	st, err := s.entrySvc.LedgerFor(r.Context(), a, from, to)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	resp := statementResponse{
		Account: toAccountResponse(st.Account),
		TotalIncome: totalsResponse{
			Currency:    amountCurrency(st.TotalIncome),
			IncomeMinor: amountMinor(st.TotalIncome),
		},
		TotalExpense: totalsResponse{
			Currency:     amountCurrency(st.TotalExpense),
			ExpenseMinor: amountMinor(st.TotalExpense),
		},
		Incomes:  make([]entryResponse, 0, len(st.Incomes)),
		Expenses: make([]entryResponse, 0, len(st.Expenses)),
	}
	for _, e := range st.Incomes {
		resp.Incomes = append(resp.Incomes, toEntryResponse(e))
	}
	for _, e := range st.Expenses {
		resp.Expenses = append(resp.Expenses, toEntryResponse(e))
	}
	toJSON(w, http.StatusOK, resp)
}

// adminSearchEntries handles GET /v1/admin/entries?kind=&q=&from=&to=
func (s *Server) adminSearchEntries(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKindParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	from, err := parseDateParam(r, "from")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	rows, err := s.entrySvc.Search(r.Context(), kind, r.URL.Query().Get("q"), from, to)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	resp := searchResponse{Items: make([]accountEntryResponse, 0, len(rows)), Currency: s.cfg.Currency}
	for _, row := range rows {
		resp.TotalMinor += row.AmountMinor
		resp.Items = append(resp.Items, accountEntryResponse{
			entryResponse: toEntryResponse(row.Entry),
			PublicID:      row.PublicID,
			FullName:      row.FullName,
			Email:         row.Email,
		})
	}
	toJSON(w, http.StatusOK, resp)
}
