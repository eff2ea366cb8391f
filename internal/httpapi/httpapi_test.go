package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/govfin/ledger/internal/config"
	"github.com/govfin/ledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testConfig() config.Config {
	return config.Config{Port: "8080", Currency: "TRY"}
}

func setup(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.New()
	h := New(store, store, store, store, store, store, testConfig(), testLogger()).Handler()
	return store, h
}

type catResp struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind"`
	Name               string `json:"name"`
	DefaultAmountMinor int64  `json:"default_amount_minor"`
	LinkedCategoryID   string `json:"linked_category_id"`
}

type entResp struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	AmountMinor      int64  `json:"amount_minor"`
	SettledMinor     int64  `json:"settled_minor"`
	OutstandingMinor int64  `json:"outstanding_minor"`
	Date             string `json:"date"`
	Source           string `json:"source"`
	Notes            string `json:"notes"`
	GeneratedFrom    string `json:"generated_from"`
}

type createEntResp struct {
	Entry     entResp  `json:"entry"`
	Generated *entResp `json:"generated"`
}

// do issues a request with dev identity headers and returns the recorder.
func do(t *testing.T, h http.Handler, method, path, subject, roles string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if subject != "" {
		req.Header.Set("X-Subject", subject)
		req.Header.Set("X-Email", subject+"@example.test")
	}
	if roles != "" {
		req.Header.Set("X-Roles", roles)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v: %s", err, rec.Body.String())
	}
	return v
}

func TestAuth_RequiredAndProvisioning(t *testing.T) {
	store, h := setup(t)

	// no identity
	rec := do(t, h, http.MethodGet, "/v1/totals", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// first user request provisions an account
	rec = do(t, h, http.MethodGet, "/v1/totals", "citizen-001", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	a, err := store.AccountBySubject(context.Background(), "citizen-001")
	if err != nil {
		t.Fatalf("account not provisioned: %v", err)
	}
	if a.FullName != "citizen-001" {
		t.Fatalf("fallback name = %q, want email local part", a.FullName)
	}
	if len(a.PublicID) != 11 || !strings.HasPrefix(a.PublicID, "N") {
		t.Fatalf("derived public id wrong: %q", a.PublicID)
	}

	// admin-only principal without an account is refused, opaquely
	rec = do(t, h, http.MethodGet, "/v1/totals", "pure-admin", "admin", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminGate(t *testing.T) {
	_, h := setup(t)
	rec := do(t, h, http.MethodGet, "/v1/admin/accounts", "citizen-001", "user", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user on admin route: expected 403, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/v1/admin/accounts", "admin-001", "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin listing: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCategoriesAndGeneratedEntryFlow(t *testing.T) {
	_, h := setup(t)
	subject := "citizen-100"

	// expense category with a default amount
	rec := do(t, h, http.MethodPost, "/v1/categories", subject, "", map[string]any{
		"kind": "expense", "name": "Deduction", "default_amount_minor": 25000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense cat: %d: %s", rec.Code, rec.Body.String())
	}
	deduction := decode[catResp](t, rec)

	// duplicate name is a conflict
	rec = do(t, h, http.MethodPost, "/v1/categories", subject, "", map[string]any{
		"kind": "expense", "name": "deduction",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate cat: expected 409, got %d", rec.Code)
	}

	// linked income category
	rec = do(t, h, http.MethodPost, "/v1/categories", subject, "", map[string]any{
		"kind": "income", "name": "Salary", "linked_category_id": deduction.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create income cat: %d: %s", rec.Code, rec.Body.String())
	}
	salary := decode[catResp](t, rec)

	// income entry generates the companion expense
	rec = do(t, h, http.MethodPost, "/v1/entries", subject, "", map[string]any{
		"kind": "income", "amount_minor": 1750000, "date": "2024-03-15",
		"source": "March salary", "category_id": salary.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create entry: %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[createEntResp](t, rec)
	if created.Generated == nil {
		t.Fatalf("expected generated expense in response")
	}
	if created.Generated.AmountMinor != 25000 || created.Generated.GeneratedFrom != created.Entry.ID {
		t.Fatalf("generated expense wrong: %+v", created.Generated)
	}

	// the same request again suppresses the duplicate
	rec = do(t, h, http.MethodPost, "/v1/entries", subject, "", map[string]any{
		"kind": "income", "amount_minor": 1750000, "date": "2024-03-15",
		"source": "March salary", "category_id": salary.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("repeat entry: %d", rec.Code)
	}
	if repeat := decode[createEntResp](t, rec); repeat.Generated != nil {
		t.Fatalf("duplicate generation over HTTP")
	}
	rec = do(t, h, http.MethodGet, "/v1/entries?kind=expense", subject, "", nil)
	if got := decode[[]entResp](t, rec); len(got) != 1 {
		t.Fatalf("expected one expense, got %d", len(got))
	}
}

func TestEntryPatchAndPayAll(t *testing.T) {
	_, h := setup(t)
	subject := "citizen-200"

	rec := do(t, h, http.MethodPost, "/v1/entries", subject, "", map[string]any{
		"kind": "expense", "amount_minor": 10000, "date": "2024-03-01", "source": "Rent",
	})
	created := decode[createEntResp](t, rec)
	id := created.Entry.ID

	// partial payment via PATCH
	rec = do(t, h, http.MethodPatch, "/v1/entries/"+id, subject, "", map[string]any{
		"amount_minor": 10000, "date": "2024-03-01", "source": "Rent", "payment_minor": 4000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d: %s", rec.Code, rec.Body.String())
	}
	if e := decode[entResp](t, rec); e.SettledMinor != 4000 || e.OutstandingMinor != 6000 {
		t.Fatalf("partial payment wrong: %+v", e)
	}

	// negative payment refused
	rec = do(t, h, http.MethodPatch, "/v1/entries/"+id, subject, "", map[string]any{
		"amount_minor": 10000, "date": "2024-03-01", "source": "Rent", "payment_minor": -1,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative payment: expected 422, got %d", rec.Code)
	}

	// deferred listing sees the outstanding entry
	rec = do(t, h, http.MethodGet, "/v1/entries/deferred?kind=expense", subject, "", nil)
	if got := decode[[]entResp](t, rec); len(got) != 1 {
		t.Fatalf("expected 1 deferred, got %d", len(got))
	}

	// payall, twice
	rec = do(t, h, http.MethodPost, "/v1/entries/"+id+"/payall", subject, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payall: %d", rec.Code)
	}
	first := decode[struct {
		Entry          entResp `json:"entry"`
		AlreadySettled bool    `json:"already_settled"`
	}](t, rec)
	if first.AlreadySettled || first.Entry.OutstandingMinor != 0 {
		t.Fatalf("payall wrong: %+v", first)
	}
	rec = do(t, h, http.MethodPost, "/v1/entries/"+id+"/payall", subject, "", nil)
	second := decode[struct {
		AlreadySettled bool `json:"already_settled"`
	}](t, rec)
	if !second.AlreadySettled {
		t.Fatalf("repeat payall must report already settled")
	}

	rec = do(t, h, http.MethodGet, "/v1/entries/deferred?kind=expense", subject, "", nil)
	if got := decode[[]entResp](t, rec); len(got) != 0 {
		t.Fatalf("settled entry still deferred")
	}
}

func TestOwnershipOverHTTP(t *testing.T) {
	_, h := setup(t)

	rec := do(t, h, http.MethodPost, "/v1/entries", "citizen-a", "", map[string]any{
		"kind": "income", "amount_minor": 100, "date": "2024-03-01", "source": "pay",
	})
	created := decode[createEntResp](t, rec)

	// another citizen cannot see or delete it
	rec = do(t, h, http.MethodGet, "/v1/entries/"+created.Entry.ID, "citizen-b", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign get: expected 404, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodDelete, "/v1/entries/"+created.Entry.ID, "citizen-b", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: expected 404, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/v1/entries/"+created.Entry.ID, "citizen-a", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner lost the entry: %d", rec.Code)
	}
}

func TestAdminAccountsAndLedger(t *testing.T) {
	_, h := setup(t)
	admin := "admin-1"

	rec := do(t, h, http.MethodPost, "/v1/admin/accounts", admin, "admin", map[string]any{
		"subject": "citizen-500", "public_id": "N1112223334",
		"full_name": "Ayse Yilmaz", "email": "ayse@example.test",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create: %d: %s", rec.Code, rec.Body.String())
	}
	acc := decode[struct {
		ID       string `json:"id"`
		PublicID string `json:"public_id"`
	}](t, rec)

	// invalid public id is a validation failure
	rec = do(t, h, http.MethodPost, "/v1/admin/accounts", admin, "admin", map[string]any{
		"subject": "citizen-501", "public_id": "short", "full_name": "X", "email": "x@example.test",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad public id: expected 422, got %d", rec.Code)
	}

	// the citizen files an entry, the admin reads the statement
	rec = do(t, h, http.MethodPost, "/v1/entries", "citizen-500", "", map[string]any{
		"kind": "income", "amount_minor": 50000, "date": "2024-03-01", "source": "Pension",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("citizen entry: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/v1/admin/accounts/"+acc.ID+"/ledger", admin, "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ledger: %d: %s", rec.Code, rec.Body.String())
	}
	st := decode[struct {
		Account struct {
			PublicID string `json:"public_id"`
		} `json:"account"`
		Incomes     []entResp `json:"incomes"`
		TotalIncome struct {
			IncomeMinor int64 `json:"income_minor"`
		} `json:"total_income"`
	}](t, rec)
	if st.Account.PublicID != "N1112223334" || len(st.Incomes) != 1 || st.TotalIncome.IncomeMinor != 50000 {
		t.Fatalf("statement wrong: %+v", st)
	}

	// admin search filter on holder name
	rec = do(t, h, http.MethodGet, "/v1/admin/entries?kind=income&q=yilmaz", admin, "admin", nil)
	search := decode[struct {
		Items      []json.RawMessage `json:"items"`
		TotalMinor int64             `json:"total_minor"`
	}](t, rec)
	if len(search.Items) != 1 || search.TotalMinor != 50000 {
		t.Fatalf("admin search wrong: %+v", search)
	}
}

func TestCSVExports(t *testing.T) {
	_, h := setup(t)
	admin := "admin-2"

	rec := do(t, h, http.MethodPost, "/v1/admin/accounts", admin, "admin", map[string]any{
		"subject": "citizen-600", "public_id": "N9998887776",
		"full_name": `Holder "The Payer"`, "email": "payer@example.test",
	})
	acc := decode[struct {
		ID string `json:"id"`
	}](t, rec)
	rec = do(t, h, http.MethodPost, "/v1/entries", "citizen-600", "", map[string]any{
		"kind": "income", "amount_minor": 123456, "date": "2024-03-01", "source": "Pension",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("entry: %d", rec.Code)
	}

	// per-account export
	rec = do(t, h, http.MethodGet, "/v1/admin/accounts/"+acc.ID+"/export.csv", admin, "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	lines := strings.Split(strings.TrimRight(body, "\r\n"), "\r\n")
	if lines[0] != `"Type","Date","Amount","Source","Notes"` {
		t.Fatalf("per-account header wrong: %q", lines[0])
	}
	if len(lines) != 2 || lines[1] != `"Income","2024-03-01","1234.56","Pension",""` {
		t.Fatalf("per-account row wrong: %q", lines)
	}

	// expense-only export titles the free-text column "Category"
	rec = do(t, h, http.MethodPost, "/v1/entries", "citizen-600", "", map[string]any{
		"kind": "expense", "amount_minor": 4200, "date": "2024-03-02", "source": "Rent",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expense entry: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/v1/admin/accounts/"+acc.ID+"/export.csv?kind=expense", admin, "admin", nil)
	lines = strings.Split(strings.TrimRight(rec.Body.String(), "\r\n"), "\r\n")
	if lines[0] != `"Type","Date","Amount","Category","Notes"` {
		t.Fatalf("expense header wrong: %q", lines[0])
	}
	rec = do(t, h, http.MethodGet, "/v1/admin/entries/export.csv?kind=expense", admin, "admin", nil)
	lines = strings.Split(strings.TrimRight(rec.Body.String(), "\r\n"), "\r\n")
	if lines[0] != `"Date","UserId","FullName","Email","Amount","Category","Notes"` {
		t.Fatalf("bulk expense header wrong: %q", lines[0])
	}

	// cross-account export with embedded quotes doubled
	rec = do(t, h, http.MethodGet, "/v1/admin/entries/export.csv?kind=income", admin, "admin", nil)
	body = rec.Body.String()
	lines = strings.Split(strings.TrimRight(body, "\r\n"), "\r\n")
	if lines[0] != `"Date","UserId","FullName","Email","Amount","Source","Notes"` {
		t.Fatalf("bulk header wrong: %q", lines[0])
	}
	if !strings.Contains(body, `"Holder ""The Payer"""`) {
		t.Fatalf("quotes not doubled: %s", body)
	}
	if !strings.Contains(body, `"N9998887776"`) {
		t.Fatalf("public id missing: %s", body)
	}
}

func TestDictionary(t *testing.T) {
	_, h := setup(t)
	rec := do(t, h, http.MethodGet, "/v1/dictionary/categories?kind=income", "citizen-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dictionary: %d", rec.Code)
	}
	out := decode[struct {
		Items []struct {
			Kind       string `json:"kind"`
			Categories []struct {
				Label string `json:"label"`
			} `json:"categories"`
		} `json:"items"`
	}](t, rec)
	if len(out.Items) != 1 || out.Items[0].Kind != "income" || len(out.Items[0].Categories) == 0 {
		t.Fatalf("dictionary wrong: %+v", out)
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, h := setup(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, rec.Code)
		}
	}
}

// signHS256 builds a minimal JWT for the configured secret.
func signHS256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(b)
	}
	head := enc(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload := enc(claims)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(head + "." + payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return head + "." + payload + "." + sig
}

func TestJWTAuth(t *testing.T) {
	store := memory.New()
	cfg := testConfig()
	cfg.JWTSecret = "test-secret"
	cfg.JWTIssuer = "govfin"
	h := New(store, store, store, store, store, store, cfg, testLogger()).Handler()

	// identity headers are ignored once a secret is configured
	req := httptest.NewRequest(http.MethodGet, "/v1/totals", nil)
	req.Header.Set("X-Subject", "spoofed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("header spoof: expected 401, got %d", rec.Code)
	}

	// valid token
	tok := signHS256(t, "test-secret", map[string]any{
		"iss": "govfin", "sub": "citizen-jwt", "email": "jwt@example.test", "roles": []string{"user"},
	})
	req = httptest.NewRequest(http.MethodGet, "/v1/totals", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// wrong issuer
	tok = signHS256(t, "test-secret", map[string]any{"iss": "other", "sub": "citizen-jwt"})
	req = httptest.NewRequest(http.MethodGet, "/v1/totals", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong issuer: expected 401, got %d", rec.Code)
	}

	// wrong secret
	tok = signHS256(t, "other-secret", map[string]any{"iss": "govfin", "sub": "citizen-jwt"})
	req = httptest.NewRequest(http.MethodGet, "/v1/totals", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rec.Code)
	}
}

func TestStoreFailuresStayOpaque(t *testing.T) {
	store, h := setup(t)
	subject := "citizen-60"

	// validation failures keep their field message
	rec := do(t, h, http.MethodPost, "/v1/entries", subject, "", map[string]any{
		"kind": "income", "amount_minor": -5, "date": "2024-03-01", "source": "Pension",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative amount: expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "amount must not be negative") {
		t.Fatalf("negative amount: missing field message: %s", rec.Body.String())
	}

	// an aborted entry transaction surfaces as a generic failure, never as a
	// validation error carrying store internals
	store.FailNextEntryTx(errors.New("connection reset by peer"))
	rec = do(t, h, http.MethodPost, "/v1/entries", subject, "", map[string]any{
		"kind": "income", "amount_minor": 1000, "date": "2024-03-01", "source": "Pension",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("entry tx failure: expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Fatalf("entry tx failure leaked internals: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "operation failed") {
		t.Fatalf("entry tx failure: expected generic message, got %s", rec.Body.String())
	}

	// same for a rename cascade aborted mid-transaction
	rec = do(t, h, http.MethodPost, "/v1/categories", subject, "", map[string]any{
		"kind": "expense", "name": "Rent",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: %d: %s", rec.Code, rec.Body.String())
	}
	cat := decode[catResp](t, rec)

	store.FailNextCascade(errors.New("tx aborted"))
	rec = do(t, h, http.MethodPatch, "/v1/categories/"+cat.ID, subject, "", map[string]any{
		"name": "Housing", "default_amount_minor": 0,
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("cascade failure: expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "tx aborted") {
		t.Fatalf("cascade failure leaked internals: %s", rec.Body.String())
	}
}
