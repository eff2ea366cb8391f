package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/govfin/ledger/internal/service/entry"
)

// postEntry handles POST /v1/entries
func (s *Server) postEntry(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	var req postEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	created, gen, err := s.entrySvc.Create(r.Context(), entry.CreateInput{
		AccountID:    a.ID,
		Kind:         req.Kind,
		AmountMinor:  req.AmountMinor,
		SettledMinor: req.SettledMinor,
		Date:         date,
		Source:       req.Source,
		Notes:        req.Notes,
		CategoryID:   req.CategoryID,
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	resp := createEntryResponse{Entry: toEntryResponse(created)}
	if gen != nil {
		g := toEntryResponse(*gen)
		resp.Generated = &g
	}
	toJSON(w, http.StatusCreated, resp)
}

// listEntries handles GET /v1/entries?kind=&from=&to=
func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
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
	entries, err := s.entrySvc.List(r.Context(), a.ID, kind, from, to)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}

// listDeferred handles GET /v1/entries/deferred?kind=
func (s *Server) listDeferred(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	kind, err := parseKindParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	entries, err := s.entrySvc.Deferred(r.Context(), a.ID, kind)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}

// getEntry handles GET /v1/entries/{id}
func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	e, err := s.entrySvc.Get(r.Context(), a.ID, id)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toEntryResponse(e))
}

// updateEntry handles PATCH /v1/entries/{id}. An optional payment_minor is
// applied to the settled amount after the field edits.
func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	var req updateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	e, err := s.entrySvc.Edit(r.Context(), entry.EditInput{
		AccountID:    a.ID,
		EntryID:      id,
		AmountMinor:  req.AmountMinor,
		Date:         date,
		Source:       req.Source,
		Notes:        req.Notes,
		PaymentMinor: req.PaymentMinor,
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toEntryResponse(e))
}

// deleteEntry handles DELETE /v1/entries/{id}
func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	if err := s.entrySvc.Delete(r.Context(), a.ID, id); err != nil {
		s.writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// payAllEntry handles POST /v1/entries/{id}/payall
func (s *Server) payAllEntry(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	e, already, err := s.entrySvc.PayAll(r.Context(), a.ID, id)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, payAllResponse{Entry: toEntryResponse(e), AlreadySettled: already})
}
