package postgres

import (
	"github.com/govfin/ledger/internal/service/account"
	"github.com/govfin/ledger/internal/service/category"
	"github.com/govfin/ledger/internal/service/entry"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ account.Repo    = (*Store)(nil)
	_ account.Writer  = (*Store)(nil)
	_ category.Repo   = (*Store)(nil)
	_ category.Writer = (*Store)(nil)
	_ entry.Repo      = (*Store)(nil)
	_ entry.Writer    = (*Store)(nil)
)
