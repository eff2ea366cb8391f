// Package category implements the per-account category store: name
// uniqueness per kind, income→expense links for auto-generation, and the
// rename cascade that keeps historical entry labels in sync.
package category

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/govfin/ledger/internal/errs"
	"github.com/govfin/ledger/internal/ledger"
)

type Repo interface {
	ListCategories(ctx context.Context, accountID uuid.UUID, kind ledger.Kind) ([]ledger.Category, error)
	GetCategory(ctx context.Context, accountID, categoryID uuid.UUID) (ledger.Category, error)
	// CategoryNameTaken reports whether (account, kind, name) is already in
	// use by a category other than exclude.
	CategoryNameTaken(ctx context.Context, accountID uuid.UUID, kind ledger.Kind, name string, exclude uuid.UUID) (bool, error)
}

type Writer interface {
	CreateCategory(ctx context.Context, c ledger.Category) (ledger.Category, error)
	// UpdateCategoryCascade updates the category row and rewrites the source
	// label of every entry referencing it, atomically.
	UpdateCategoryCascade(ctx context.Context, c ledger.Category) error
	DeleteCategory(ctx context.Context, accountID, categoryID uuid.UUID) error
}

// CreateInput carries the fields accepted when defining a category.
type CreateInput struct {
	AccountID          uuid.UUID
	Kind               ledger.Kind
	Name               string
	DefaultAmountMinor int64
	// LinkedCategoryID is honored for income categories only.
	LinkedCategoryID *uuid.UUID
}

// UpdateInput renames a category and adjusts its default amount. The link is
// fixed at creation time.
type UpdateInput struct {
	AccountID          uuid.UUID
	CategoryID         uuid.UUID
	Name               string
	DefaultAmountMinor int64
}

type Service interface {
	List(ctx context.Context, accountID uuid.UUID, kind ledger.Kind) ([]ledger.Category, error)
	Create(ctx context.Context, in CreateInput) (ledger.Category, error)
	Update(ctx context.Context, in UpdateInput) (ledger.Category, error)
	Delete(ctx context.Context, accountID, categoryID uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) List(ctx context.Context, accountID uuid.UUID, kind ledger.Kind) ([]ledger.Category, error) {
	if accountID == uuid.Nil || !kind.Valid() {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListCategories(ctx, accountID, kind)
}

func (s *service) Create(ctx context.Context, in CreateInput) (ledger.Category, error) {
	if in.AccountID == uuid.Nil || !in.Kind.Valid() {
		return ledger.Category{}, errs.ErrInvalid
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return ledger.Category{}, err
	}
	if in.DefaultAmountMinor < 0 {
		return ledger.Category{}, errs.Validation("default_amount must not be negative")
	}

	var link *uuid.UUID
	if in.Kind == ledger.KindIncome && in.LinkedCategoryID != nil {
		linked, err := s.repo.GetCategory(ctx, in.AccountID, *in.LinkedCategoryID)
		if errors.Is(err, errs.ErrNotFound) {
			return ledger.Category{}, errs.ErrBadLink
		}
		if err != nil {
			return ledger.Category{}, err
		}
		if linked.Kind != ledger.KindExpense {
			return ledger.Category{}, errs.ErrBadLink
		}
		id := linked.ID
		link = &id
	}

	taken, err := s.repo.CategoryNameTaken(ctx, in.AccountID, in.Kind, name, uuid.Nil)
	if err != nil {
		return ledger.Category{}, err
	}
	if taken {
		return ledger.Category{}, errs.ErrDuplicateName
	}

	c := ledger.Category{
		ID:                 uuid.New(),
		AccountID:          in.AccountID,
		Kind:               in.Kind,
		Name:               name,
		DefaultAmountMinor: in.DefaultAmountMinor,
		LinkedCategoryID:   link,
	}
	return s.writer.CreateCategory(ctx, c)
}

func (s *service) Update(ctx context.Context, in UpdateInput) (ledger.Category, error) {
	if in.AccountID == uuid.Nil || in.CategoryID == uuid.Nil {
		return ledger.Category{}, errs.ErrInvalid
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return ledger.Category{}, err
	}
	if in.DefaultAmountMinor < 0 {
		return ledger.Category{}, errs.Validation("default_amount must not be negative")
	}
	c, err := s.repo.GetCategory(ctx, in.AccountID, in.CategoryID)
	if err != nil {
		return ledger.Category{}, err
	}
	taken, err := s.repo.CategoryNameTaken(ctx, in.AccountID, c.Kind, name, c.ID)
	if err != nil {
		return ledger.Category{}, err
	}
	if taken {
		return ledger.Category{}, errs.ErrDuplicateName
	}

	c.Name = name
	c.DefaultAmountMinor = in.DefaultAmountMinor
	// The category row and the source label of its historical entries commit
	// together or not at all.
	if err := s.writer.UpdateCategoryCascade(ctx, c); err != nil {
		return ledger.Category{}, fmt.Errorf("rename cascade: %w", err)
	}
	return c, nil
}

func (s *service) Delete(ctx context.Context, accountID, categoryID uuid.UUID) error {
	if accountID == uuid.Nil || categoryID == uuid.Nil {
		return errs.ErrInvalid
	}
	return s.writer.DeleteCategory(ctx, accountID, categoryID)
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Validation("name is required")
	}
	if len(name) > 100 {
		return "", errs.Validation("name must be at most 100 characters")
	}
	return name, nil
}
