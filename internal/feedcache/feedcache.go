// Package feedcache persists decoded feed accounts and feed transactions in
// a small SQL table so a pipeline run can replay without hitting the feed
// provider again (spec.md §6 "Persisted state").
//
// Grounded on tinoosan-ledger's internal/storage/postgres.Store, in
// particular its metadata-as-json column handling
// (meta.Metadata.MarshalStableJSON/UnmarshalJSON alongside plain SQL
// columns) generalized here to an {id text primary key, data json} table
// holding arbitrary caller-supplied payloads instead of a fixed struct.
package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Store is a pgx-backed reader/writer for one cache table of shape
// {id text primary key, data json}.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Open establishes a pgx pool and verifies connectivity. table names the
// cache table this Store reads and writes (the pipeline uses one per feed
// entity kind, e.g. "feed_account_cache" and "feed_transaction_cache").
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse feed cache dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open feed cache pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping feed cache pool: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
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

// Put upserts the JSON encoding of value under id.
func (s *Store) Put(ctx context.Context, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry %s/%s: %w", s.table, id, err)
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		insert into %s (id, data) values ($1, $2)
		on conflict (id) do update set data = excluded.data
	`, s.table), id, data)
	if err != nil {
		return fmt.Errorf("upsert cache entry %s/%s: %w", s.table, id, err)
	}
	return nil
}

// Get decodes the cached entry for id into dest, reporting whether an entry
// existed.
func (s *Store) Get(ctx context.Context, id string, dest any) (bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`select data from %s where id = $1`, s.table), id).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("get cache entry %s/%s: %w", s.table, id, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal cache entry %s/%s: %w", s.table, id, err)
	}
	return true, nil
}

// All decodes every cached entry in the table, in no particular order,
// into a fresh value produced by newDest, and passes it to visit.
func (s *Store) All(ctx context.Context, newDest func() any, visit func(id string, dest any) error) error {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`select id, data from %s`, s.table))
	if err != nil {
		return fmt.Errorf("query cache table %s: %w", s.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("scan cache entry in %s: %w", s.table, err)
		}
		dest := newDest()
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("unmarshal cache entry %s/%s: %w", s.table, id, err)
		}
		if err := visit(id, dest); err != nil {
			return err
		}
	}
	return rows.Err()
}
