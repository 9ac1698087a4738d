// Command akahu-firefly runs one batch reconciliation: it reads the
// ledger's accounts/transactions, replays the cached feed, matches and
// fuses the two, and writes the result back to the ledger (spec.md §2 data
// flow).
//
// Grounded directly on tinoosan-ledger's cmd/main.go: signal.NotifyContext
// for graceful shutdown, slog.SetDefault, an errCh/ctx.Done() select for the
// side-channel admin server, and a closing banner in the spirit of
// printDevSeedBanner.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jasmoran/akahu-firefly/internal/accountstore"
	"github.com/jasmoran/akahu-firefly/internal/adminhttp"
	"github.com/jasmoran/akahu-firefly/internal/config"
	"github.com/jasmoran/akahu-firefly/internal/export"
	"github.com/jasmoran/akahu-firefly/internal/feedcache"
	"github.com/jasmoran/akahu-firefly/internal/feedimport"
	"github.com/jasmoran/akahu-firefly/internal/fireflyapi"
	"github.com/jasmoran/akahu-firefly/internal/ledgerdb"
	"github.com/jasmoran/akahu-firefly/internal/ledgerimport"
	"github.com/jasmoran/akahu-firefly/internal/merge"
	"github.com/jasmoran/akahu-firefly/internal/metrics"
	"github.com/jasmoran/akahu-firefly/internal/txstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ledgerDB, err := ledgerdb.Open(ctx, cfg.LedgerDatabaseURL)
	if err != nil {
		logger.Error("failed to connect to ledger database", "error", err)
		os.Exit(1)
	}
	defer ledgerDB.Close()

	accountCache, err := feedcache.Open(ctx, cfg.FeedCacheDatabaseURL, "feed_account_cache")
	if err != nil {
		logger.Error("failed to connect to feed cache", "error", err)
		os.Exit(1)
	}
	defer accountCache.Close()

	transactionCache, err := feedcache.Open(ctx, cfg.FeedCacheDatabaseURL, "feed_transaction_cache")
	if err != nil {
		logger.Error("failed to connect to feed cache", "error", err)
		os.Exit(1)
	}
	defer transactionCache.Close()

	writer := fireflyapi.New(cfg.LedgerBasePath, cfg.LedgerAPIKey)

	admin := adminhttp.New(logger, ledgerDB, accountCache, transactionCache)
	srv := &http.Server{
		Addr:              ":8080",
		Handler:           admin.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		logger.Error("admin server failed", "error", runErr)
	default:
		runErr = run(ctx, cfg, logger, ledgerDB, accountCache, transactionCache, writer)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown error", "error", err)
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		os.Exit(1)
	}
}

// run executes the full pipeline once: import the ledger, replay the feed,
// fuse, and export (spec.md §2).
func run(ctx context.Context, cfg config.Config, logger *slog.Logger, ledgerDB *ledgerdb.Store, accountCache, transactionCache *feedcache.Store, writer *fireflyapi.Client) error {
	accounts := accountstore.New()
	transactions := txstore.New()

	var accountsCreated, accountsMerged int
	err := metrics.ObserveStage("import_ledger_accounts", func() error {
		rows, err := ledgerDB.FetchAccounts(ctx)
		if err != nil {
			return fmt.Errorf("fetch ledger accounts: %w", err)
		}
		for _, row := range rows {
			before := accounts.Len()
			account, err := ledgerimport.ImportAccount(accounts, row)
			if err != nil {
				metrics.AccountsImported.WithLabelValues("conflict").Inc()
				return fmt.Errorf("import ledger account %d: %w", row.ID, err)
			}
			if account.ID == 0 {
				continue
			}
			if accounts.Len() > before {
				accountsCreated++
				metrics.AccountsImported.WithLabelValues("created").Inc()
			} else {
				accountsMerged++
				metrics.AccountsImported.WithLabelValues("merged").Inc()
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = metrics.ObserveStage("import_ledger_transactions", func() error {
		rows, err := ledgerDB.FetchTransactions(ctx)
		if err != nil {
			return fmt.Errorf("fetch ledger transactions: %w", err)
		}
		for _, row := range rows {
			if _, err := ledgerimport.ImportTransaction(accounts, transactions, row); err != nil {
				return fmt.Errorf("import ledger transaction %d: %w", row.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	originalAccounts := accounts.Duplicate()
	originalTransactions := transactions.Duplicate()

	if cfg.LoadAkahuData {
		logger.Info("LOAD_AKAHU_DATA set but no feed provider client is wired; replaying the existing cache")
	}

	var records []feedimport.Record
	err = metrics.ObserveStage("replay_feed_cache", func() error {
		return transactionCache.All(ctx, func() any { return &feedimport.Record{} }, func(id string, dest any) error {
			record, ok := dest.(*feedimport.Record)
			if !ok {
				return fmt.Errorf("unexpected cache entry type for %s", id)
			}
			records = append(records, *record)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("replay feed cache: %w", err)
	}

	var feedStore *txstore.Store
	err = metrics.ObserveStage("import_feed", func() error {
		store, err := feedimport.ImportFeed(accounts, records)
		if err != nil {
			return err
		}
		feedStore = store
		return nil
	})
	if err != nil {
		return err
	}

	err = metrics.ObserveStage("merge_feed_into_ledger", func() error {
		_, _, err := merge.Merge(transactions, feedStore, nil, nil)
		return err
	})
	if err != nil {
		return err
	}

	exporter := &export.Exporter{Writer: writer, DryRun: cfg.DryRun, Logger: logger}
	err = metrics.ObserveStage("export", func() error {
		return exporter.Run(ctx, originalAccounts, accounts, originalTransactions, transactions)
	})
	if err != nil {
		return err
	}

	printRunSummary(accountsCreated, accountsMerged, len(records), transactions.Len())
	return nil
}

// printRunSummary prints a one-line banner at the end of a run, mirroring
// tinoosan-ledger's printDevSeedBanner convenience-banner convention.
func printRunSummary(accountsCreated, accountsMerged, feedRecords, transactionCount int) {
	fmt.Printf(
		"run summary: accounts created=%d merged=%d, feed records replayed=%d, transactions in working store=%d\n",
		accountsCreated, accountsMerged, feedRecords, transactionCount,
	)
}
