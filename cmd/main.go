package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/govfin/ledger/internal/config"
	"github.com/govfin/ledger/internal/httpapi"
	"github.com/govfin/ledger/internal/ledger"
	"github.com/govfin/ledger/internal/service/account"
	"github.com/govfin/ledger/internal/service/category"
	"github.com/govfin/ledger/internal/service/entry"
	"github.com/govfin/ledger/internal/storage/memory"
	pgstore "github.com/govfin/ledger/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env is a local convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.Load()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	var handler http.Handler
	var closeFn func()

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		if cfg.DevSeed {
			seedDev(ctx, logger, *cfg, pg)
		}
		handler = httpapi.New(pg, pg, pg, pg, pg, pg, *cfg, logger).Handler()
		logger.Info("storage backend: postgres")
	} else {
		store := memory.New()
		if cfg.DevSeed {
			seedDev(ctx, logger, *cfg, store)
		}
		handler = httpapi.New(store, store, store, store, store, store, *cfg, logger).Handler()
		logger.Info("storage backend: memory")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledger service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// seedStore is the composite store surface the dev seed needs.
type seedStore interface {
	account.Repo
	account.Writer
	category.Repo
	category.Writer
	entry.Repo
	entry.Writer
}

// seedDev provisions one demo citizen with a linked salary category and a
// couple of entries so a fresh instance has something to show.
func seedDev(ctx context.Context, l *slog.Logger, cfg config.Config, store seedStore) {
	accounts := account.New(store, store)
	categories := category.New(store, store)
	entries := entry.New(store, store, cfg.Currency)

	a, err := accounts.EnsureForSubject(ctx, "dev-subject-0001", "demo@example.local")
	if err != nil {
		l.Error("dev seed failed", "err", err)
		return
	}

	deduction, err := categories.Create(ctx, category.CreateInput{
		AccountID:          a.ID,
		Kind:               ledger.KindExpense,
		Name:               "Insurance Deduction",
		DefaultAmountMinor: 25000,
	})
	if err != nil {
		l.Warn("dev seed: deduction category exists", "err", err)
		return
	}
	salary, err := categories.Create(ctx, category.CreateInput{
		AccountID:        a.ID,
		Kind:             ledger.KindIncome,
		Name:             "Salary",
		LinkedCategoryID: &deduction.ID,
	})
	if err != nil {
		l.Warn("dev seed: salary category exists", "err", err)
		return
	}

	today := time.Now().UTC()
	if _, _, err := entries.Create(ctx, entry.CreateInput{
		AccountID:   a.ID,
		Kind:        ledger.KindIncome,
		AmountMinor: 1750000,
		Date:        today,
		Source:      "Salary " + today.Format("January 2006"),
		CategoryID:  &salary.ID,
	}); err != nil {
		l.Error("dev seed: create income", "err", err)
		return
	}
	if _, _, err := entries.Create(ctx, entry.CreateInput{
		AccountID:   a.ID,
		Kind:        ledger.KindExpense,
		AmountMinor: 90000,
		Date:        today,
		Source:      "Rent",
	}); err != nil {
		l.Error("dev seed: create expense", "err", err)
		return
	}

	l.Info("dev seed complete",
		"subject", a.Subject,
		"account_id", a.ID.String(),
		"public_id", a.PublicID,
	)
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
