package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/govfin/ledger/internal/errs"
	"github.com/govfin/ledger/internal/ledger"
	"github.com/govfin/ledger/internal/service/account"
	"github.com/govfin/ledger/internal/storage/memory"
)

func TestEnsureForSubject_Provisions(t *testing.T) {
	store := memory.New()
	svc := account.New(store, store)
	ctx := context.Background()

	a, err := svc.EnsureForSubject(ctx, "1234567890abcdef", "ayse.yilmaz@example.test")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if a.PublicID != "N1234567890" {
		t.Fatalf("derived public id = %q", a.PublicID)
	}
	if a.FullName != "ayse.yilmaz" {
		t.Fatalf("fallback name = %q, want email local part", a.FullName)
	}

	// second call resolves the same row
	again, err := svc.EnsureForSubject(ctx, "1234567890abcdef", "ayse.yilmaz@example.test")
	if err != nil || again.ID != a.ID {
		t.Fatalf("ensure must be idempotent: %v %+v", err, again)
	}
}

func TestEnsureForSubject_FallbackNames(t *testing.T) {
	store := memory.New()
	svc := account.New(store, store)
	ctx := context.Background()

	a, err := svc.EnsureForSubject(ctx, "subject-noemail", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if a.FullName != "Citizen" {
		t.Fatalf("empty email fallback = %q", a.FullName)
	}
}

func TestResolveSubject_AbsenceIsNotFound(t *testing.T) {
	store := memory.New()
	svc := account.New(store, store)
	if _, err := svc.ResolveSubject(context.Background(), "nobody"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ResolveSubject(context.Background(), "   "); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("blank subject: expected ErrInvalid, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	store := memory.New()
	svc := account.New(store, store)
	ctx := context.Background()

	valid := ledger.Account{Subject: "s-1", PublicID: "N0000000001", FullName: "Holder", Email: "h@example.test"}
	if _, err := svc.Create(ctx, valid); err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := []struct {
		name string
		mut  func(a *ledger.Account)
	}{
		{"missing subject", func(a *ledger.Account) { a.Subject = ""; a.PublicID = "N0000000002" }},
		{"bad public id", func(a *ledger.Account) { a.Subject = "s-2"; a.PublicID = "short" }},
		{"missing name", func(a *ledger.Account) { a.Subject = "s-3"; a.PublicID = "N0000000003"; a.FullName = "  " }},
	}
	for _, tc := range cases {
		a := valid
		tc.mut(&a)
		if _, err := svc.Create(ctx, a); err == nil {
			t.Errorf("%s: accepted", tc.name)
		}
	}

	// duplicate public id
	dup := valid
	dup.Subject = "s-other"
	if _, err := svc.Create(ctx, dup); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("duplicate public id: expected ErrConflict, got %v", err)
	}
}

func TestUpdate_SubjectImmutable(t *testing.T) {
	store := memory.New()
	svc := account.New(store, store)
	ctx := context.Background()

	a, err := svc.Create(ctx, ledger.Account{Subject: "s-10", PublicID: "N0000000010", FullName: "Holder", Email: "h@example.test"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a.Subject = "hijacked"
	a.FullName = "Renamed"
	updated, err := svc.Update(ctx, a)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Subject != "s-10" {
		t.Fatalf("subject changed to %q", updated.Subject)
	}
	if updated.FullName != "Renamed" {
		t.Fatalf("rename lost")
	}
}

func TestDelete_Missing(t *testing.T) {
	store := memory.New()
	svc := account.New(store, store)
	if err := svc.Delete(context.Background(), uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureForSubject_PipedSubjectStaysEditable(t *testing.T) {
	store := memory.New()
	svc := account.New(store, store)
	ctx := context.Background()

	a, err := svc.EnsureForSubject(ctx, "auth0|abc123def", "pipe@example.test")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if a.PublicID != "Nauth0abc12" {
		t.Fatalf("derived public id = %q", a.PublicID)
	}

	// the provisioned id must pass the same validation an admin edit runs
	a.FullName = "Renamed Holder"
	if _, err := svc.Update(ctx, a); err != nil {
		t.Fatalf("update provisioned account: %v", err)
	}
}
