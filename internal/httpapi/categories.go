package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/govfin/ledger/internal/service/category"
)

// listCategories handles GET /v1/categories?kind=
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	kind, err := parseKindParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	cats, err := s.categorySvc.List(r.Context(), a.ID, kind)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	toJSON(w, http.StatusOK, out)
}

// postCategory handles POST /v1/categories
func (s *Server) postCategory(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	var req postCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	c, err := s.categorySvc.Create(r.Context(), category.CreateInput{
		AccountID:          a.ID,
		Kind:               req.Kind,
		Name:               req.Name,
		DefaultAmountMinor: req.DefaultAmountMinor,
		LinkedCategoryID:   req.LinkedCategoryID,
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// updateCategory handles PATCH /v1/categories/{id}
func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid category id")
		return
	}
	var req updateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	c, err := s.categorySvc.Update(r.Context(), category.UpdateInput{
		AccountID:          a.ID,
		CategoryID:         id,
		Name:               req.Name,
		DefaultAmountMinor: req.DefaultAmountMinor,
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toCategoryResponse(c))
}

// deleteCategory handles DELETE /v1/categories/{id}
func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	a, _ := accountFrom(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid category id")
		return
	}
	if err := s.categorySvc.Delete(r.Context(), a.ID, id); err != nil {
		s.writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
