// Package account implements the account resolver and the administrative
// account registry: one account per identity principal, a unique 11-character
// public identifier, and auto-provisioning at first authenticated access.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/govfin/ledger/internal/errs"
	"github.com/govfin/ledger/internal/ledger"
	"github.com/govfin/ledger/internal/natid"
)

type Repo interface {
	AccountBySubject(ctx context.Context, subject string) (ledger.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (ledger.Account, error)
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
}

type Writer interface {
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
}

// Service exposes principal resolution plus admin management of accounts.
type Service interface {
	// ResolveSubject maps an authenticated principal to its account.
	// Absence is errs.ErrNotFound; callers surface it as an authorization
	// failure, never as a crash.
	ResolveSubject(ctx context.Context, subject string) (ledger.Account, error)
	// EnsureForSubject resolves the account, provisioning one with a derived
	// public identifier and a fallback display name when none exists yet.
	EnsureForSubject(ctx context.Context, subject, email string) (ledger.Account, error)

	List(ctx context.Context) ([]ledger.Account, error)
	Get(ctx context.Context, accountID uuid.UUID) (ledger.Account, error)
	Create(ctx context.Context, a ledger.Account) (ledger.Account, error)
	Update(ctx context.Context, a ledger.Account) (ledger.Account, error)
	Delete(ctx context.Context, accountID uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) ResolveSubject(ctx context.Context, subject string) (ledger.Account, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.AccountBySubject(ctx, subject)
}

func (s *service) EnsureForSubject(ctx context.Context, subject, email string) (ledger.Account, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return ledger.Account{}, errs.ErrInvalid
	}
	a, err := s.repo.AccountBySubject(ctx, subject)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return ledger.Account{}, err
	}
	a = ledger.Account{
		ID:       uuid.New(),
		Subject:  subject,
		PublicID: natid.Derive(subject),
		FullName: fallbackName(email),
		Email:    email,
	}
	created, err := s.writer.CreateAccount(ctx, a)
	if errors.Is(err, errs.ErrConflict) {
		// Lost a provisioning race with a concurrent first request; the row
		// exists now.
		return s.repo.AccountBySubject(ctx, subject)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("provision account: %w", err)
	}
	return created, nil
}

func (s *service) List(ctx context.Context) ([]ledger.Account, error) {
	return s.repo.ListAccounts(ctx)
}

func (s *service) Get(ctx context.Context, accountID uuid.UUID) (ledger.Account, error) {
	if accountID == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.GetAccount(ctx, accountID)
}

func (s *service) Create(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	a.Subject = strings.TrimSpace(a.Subject)
	a.FullName = strings.TrimSpace(a.FullName)
	if err := validate(a); err != nil {
		return ledger.Account{}, err
	}
	a.ID = uuid.New()
	return s.writer.CreateAccount(ctx, a)
}

func (s *service) Update(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	if a.ID == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	existing, err := s.repo.GetAccount(ctx, a.ID)
	if err != nil {
		return ledger.Account{}, err
	}
	// Subject is immutable after creation.
	a.Subject = existing.Subject
	a.FullName = strings.TrimSpace(a.FullName)
	if err := validate(a); err != nil {
		return ledger.Account{}, err
	}
	return s.writer.UpdateAccount(ctx, a)
}

func (s *service) Delete(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return errs.ErrInvalid
	}
	return s.writer.DeleteAccount(ctx, accountID)
}

func validate(a ledger.Account) error {
	if a.Subject == "" {
		return errs.Validation("subject is required")
	}
	if !natid.Valid(a.PublicID) {
		return errs.Validation("public_id must be 11 alphanumeric characters")
	}
	if a.FullName == "" {
		return errs.Validation("full_name is required")
	}
	if len(a.FullName) > 150 {
		return errs.Validation("full_name must be at most 150 characters")
	}
	if len(a.Address) > 250 {
		return errs.Validation("address must be at most 250 characters")
	}
	return nil
}

// fallbackName derives a display name from the email local part.
func fallbackName(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	if email != "" {
		return email
	}
	return "Citizen"
}
