package httpapi

import (
	"net/http"
	"time"

	"github.com/govfin/ledger/internal/ledger"
)

// getTotals handles GET /v1/totals?from=&to=
func (s *Server) getTotals(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
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
	t, err := s.entrySvc.GetTotals(r.Context(), a.ID, from, to)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTotalsResponse(t))
}

// getRollups handles GET /v1/totals/rollups
func (s *Server) getRollups(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	ru, err := s.entrySvc.GetRollups(r.Context(), a.ID, time.Now().UTC())
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, rollupsResponse{
		All:   toTotalsResponse(ru.All),
		Month: toTotalsResponse(ru.Month),
		Year:  toTotalsResponse(ru.Year),
	})
}

// getActivity handles GET /v1/activity?kind=&q=
func (s *Server) getActivity(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	var kind *ledger.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := ledger.Kind(raw)
		if !k.Valid() {
			badRequest(w, "kind must be income or expense")
			return
		}
		kind = &k
	}
	entries, err := s.entrySvc.Activity(r.Context(), a.ID, kind, r.URL.Query().Get("q"))
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
