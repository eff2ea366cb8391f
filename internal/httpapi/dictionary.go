package httpapi

import (
	"net/http"

	"github.com/govfin/ledger/internal/dictionary"
	"github.com/govfin/ledger/internal/ledger"
)

// GET /v1/dictionary/categories?kind=
func (s *Server) getCategoriesDictionary(w http.ResponseWriter, r *http.Request) {
	var k *ledger.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kk := ledger.Kind(raw)
		if !kk.Valid() {
			badRequest(w, "kind must be income or expense")
			return
		}
		k = &kk
	}
	type kindItem struct {
		Kind       ledger.Kind              `json:"kind"`
		Categories []dictionary.CategoryDef `json:"categories"`
	}
	out := struct {
		Items []kindItem `json:"items"`
	}{Items: []kindItem{}}
	for _, kind := range []ledger.Kind{ledger.KindIncome, ledger.KindExpense} {
		if k != nil && *k != kind {
			continue
		}
		kk := kind
		out.Items = append(out.Items, kindItem{Kind: kind, Categories: dictionary.CategoriesFor(&kk)})
	}
	toJSON(w, http.StatusOK, out)
}
