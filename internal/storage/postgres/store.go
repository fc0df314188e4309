// Package postgres stores bore records as JSONB rows through a pgx pool.
//
// Each Put inserts the record and its audit row in one transaction, so a
// failed write leaves neither behind.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/strata/internal/core"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS strata_records (
	collection  TEXT        NOT NULL,
	id          TEXT        NOT NULL,
	project     TEXT        NOT NULL DEFAULT '',
	bore_id     TEXT        NOT NULL,
	created_by  TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	record      JSONB       NOT NULL,
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS strata_records_project_idx ON strata_records (collection, project);

CREATE TABLE IF NOT EXISTS strata_audit_log (
	id          UUID        PRIMARY KEY,
	action      TEXT        NOT NULL,
	collection  TEXT        NOT NULL,
	record_id   TEXT        NOT NULL,
	user_id     TEXT        NOT NULL,
	ip_address  TEXT,
	reason      TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// auditActionSave is the audit action written with every stored record.
const auditActionSave = "record_save"

// PoolConfig tunes the connection pool. Zero values keep pgx defaults.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a Postgres-backed record store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to url, verifies the connection and creates the tables.
func Open(ctx context.Context, url string, cfg PoolConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. Tables are assumed to exist.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Put inserts rec and its audit row atomically.
func (s *Store) Put(ctx context.Context, collection string, rec core.PersistedRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, rec.Metadata.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO strata_records (collection, id, project, bore_id, created_by, created_at, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		collection, rec.ID, rec.Project, rec.Metadata.BoreID, rec.Metadata.CreatedBy, createdAt, body,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO strata_audit_log (id, action, collection, record_id, user_id, ip_address, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
		uuid.NewString(), auditActionSave, collection, rec.ID, rec.Metadata.CreatedBy,
		core.GetIPAddressFromContext(ctx), auditReason(rec), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.DebugContext(ctx, "postgres.put", "collection", collection, "record_id", rec.ID)
	return nil
}

// Get loads one record.
func (s *Store) Get(ctx context.Context, collection, id string) (core.PersistedRecord, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM strata_records WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.PersistedRecord{}, fmt.Errorf("%w: %s/%s", core.ErrRecordNotFound, collection, id)
	}
	if err != nil {
		return core.PersistedRecord{}, fmt.Errorf("query record: %w", err)
	}
	return decode(body)
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, collection string, limit int) ([]core.PersistedRecord, error) {
	query := `SELECT record FROM strata_records WHERE collection = $1 ORDER BY created_at DESC, id`
	args := []any{collection}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	bodies, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	out := make([]core.PersistedRecord, 0, len(bodies))
	for _, body := range bodies {
		rec, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func decode(body []byte) (core.PersistedRecord, error) {
	var rec core.PersistedRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return core.PersistedRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func auditReason(rec core.PersistedRecord) string {
	src := rec.Metadata.ExtractionSource
	return fmt.Sprintf("Imported %s: %d layers, %d edits, confidence %.2f",
		src.Filename, rec.Metadata.StrataSummary.LayerCount, src.EditCount, src.ConfidenceScore)
}
