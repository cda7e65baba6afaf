package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS wallet_records (
    partition  TEXT        NOT NULL,
    key        TEXT        NOT NULL,
    data       JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (partition, key)
)`

// PostgresStore persists records in a single wallet_records table keyed by
// (partition, key).
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresPool configures and returns a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, unavailable("connect postgres", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping postgres", err)
	}

	return pool, nil
}

// Open creates the records table if it does not exist.
func (s *PostgresStore) Open(ctx context.Context) error {
	if s.db == nil {
		return unavailable("postgres open", errNotOpen)
	}
	if _, err := s.db.Exec(ctx, createRecordsTable); err != nil {
		return unavailable("create wallet_records", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, partition Partition, key string) (Record, error) {
	if err := checkPartition(partition); err != nil {
		return Record{}, err
	}
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM wallet_records WHERE partition = $1 AND key = $2`,
		string(partition), key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, unavailable("select record", err)
	}
	return Record{Key: key, Data: data}, nil
}

func (s *PostgresStore) GetAll(ctx context.Context, partition Partition) ([]Record, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT key, data FROM wallet_records WHERE partition = $1 ORDER BY key`,
		string(partition))
	if err != nil {
		return nil, unavailable("select records", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Key, &r.Data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate records", err)
	}
	return records, nil
}

func (s *PostgresStore) Put(ctx context.Context, partition Partition, records ...Record) error {
	if err := checkPartition(partition); err != nil {
		return err
	}
	return s.Apply(ctx, opsFor(partition, records)...)
}

func (s *PostgresStore) Apply(ctx context.Context, ops ...Op) error {
	if err := checkOps(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return unavailable("begin", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	now := time.Now().UTC()
	for _, op := range ops {
		if _, err := tx.Exec(ctx, `INSERT INTO wallet_records (partition, key, data, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (partition, key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
			string(op.Partition), op.Record.Key, op.Record.Data, now); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", op.Partition, op.Record.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, partitions ...Partition) error {
	names := make([]string, 0, len(partitions))
	for _, p := range partitions {
		if err := checkPartition(p); err != nil {
			return err
		}
		names = append(names, string(p))
	}
	if len(names) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM wallet_records WHERE partition = ANY($1)`, names); err != nil {
		return unavailable("delete records", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}
