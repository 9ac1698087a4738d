// Package ledgerdb is a pgx-backed reader of the ledger-of-record's
// relational schema, yielding the row shapes internal/ledgerimport consumes
// (spec.md §6 "Ledger reader").
//
// Grounded directly on tinoosan-ledger's internal/storage/postgres.Store:
// the same pgxpool.Pool wrapping, Open/Ready/Close lifecycle, and
// row-scanning query-loop shape, turned from a read/write repository into a
// read-only row producer.
package ledgerdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jasmoran/akahu-firefly/internal/ledger"
	"github.com/jasmoran/akahu-firefly/internal/ledgerimport"
)

// Store holds a pgx connection pool and reads account/transaction rows out
// of the ledger-of-record's database. All methods are safe for concurrent
// use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string and
// verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FetchAccounts returns every non-deleted account row, ordered by id so
// importers see a stable, repeatable sequence run to run.
func (s *Store) FetchAccounts(ctx context.Context) ([]ledgerimport.AccountRow, error) {
	rows, err := s.pool.Query(ctx, `
		select id, type, name, coalesce(iban, ''), coalesce(account_number, ''),
		       coalesce(external_id, ''), coalesce(notes, '')
		from accounts
		where deleted_at is null
		order by id asc
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	out := make([]ledgerimport.AccountRow, 0)
	for rows.Next() {
		var r ledgerimport.AccountRow
		if err := rows.Scan(&r.ID, &r.Type, &r.Name, &r.IBAN, &r.AccountNumber, &r.ExternalID, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FetchTransactions returns every non-deleted transaction row, ordered by
// id. Amount and foreign_amount are read as their textual decimal
// representation so no precision is lost converting through a float.
func (s *Store) FetchTransactions(ctx context.Context) ([]ledgerimport.TransactionRow, error) {
	rows, err := s.pool.Query(ctx, `
		select id, type, description, date, amount::text, source_id, destination_id,
		       foreign_amount::text, coalesce(foreign_currency_code, ''),
		       coalesce(external_id, ''), coalesce(category_name, '')
		from transactions
		where deleted_at is null
		order by id asc
	`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]ledgerimport.TransactionRow, 0)
	for rows.Next() {
		var r ledgerimport.TransactionRow
		var amountText string
		var foreignAmountText *string
		if err := rows.Scan(&r.ID, &r.Type, &r.Description, &r.Date, &amountText, &r.SourceID, &r.DestinationID,
			&foreignAmountText, &r.ForeignCurrencyCode, &r.ExternalID, &r.CategoryName); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		amount, err := ledger.ParseMoney(amountText)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", r.ID, err)
		}
		r.Amount = amount
		if foreignAmountText != nil && *foreignAmountText != "" {
			foreign, err := ledger.ParseMoney(*foreignAmountText)
			if err != nil {
				return nil, fmt.Errorf("transaction %d foreign amount: %w", r.ID, err)
			}
			r.ForeignAmount = &foreign
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
