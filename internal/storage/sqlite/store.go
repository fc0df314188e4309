// Package sqlite stores bore records in a single-file SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/strata/internal/core"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS strata_records (
	collection  TEXT    NOT NULL,
	id          TEXT    NOT NULL,
	project     TEXT    NOT NULL DEFAULT '',
	bore_id     TEXT    NOT NULL,
	created_by  TEXT    NOT NULL,
	created_at  INTEGER NOT NULL,
	record      TEXT    NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS strata_records_created_idx ON strata_records (collection, created_at);
CREATE TABLE IF NOT EXISTS strata_audit_log (
	id          TEXT    PRIMARY KEY,
	action      TEXT    NOT NULL,
	collection  TEXT    NOT NULL,
	record_id   TEXT    NOT NULL,
	user_id     TEXT    NOT NULL,
	ip_address  TEXT,
	created_at  INTEGER NOT NULL
);
`

const auditActionSave = "record_save"

// Store provides SQLite-backed persistence for bore records.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens (creating if needed) the database at path. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Put inserts rec and its audit row in one transaction.
func (s *Store) Put(ctx context.Context, collection string, rec core.PersistedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, rec.Metadata.CreatedAt)
	if err != nil {
		createdAt = time.Now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback record write: %v", cause, rollbackErr)
		}
		return cause
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO strata_records (collection, id, project, bore_id, created_by, created_at, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		collection, rec.ID, rec.Project, rec.Metadata.BoreID, rec.Metadata.CreatedBy, toMillis(createdAt), string(body),
	); err != nil {
		return rollbackWith(fmt.Errorf("insert record: %w", err))
	}

	var ip sql.NullString
	if v := core.GetIPAddressFromContext(ctx); v != "" {
		ip = sql.NullString{String: v, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO strata_audit_log (id, action, collection, record_id, user_id, ip_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), auditActionSave, collection, rec.ID, rec.Metadata.CreatedBy, ip, toMillis(createdAt),
	); err != nil {
		return rollbackWith(fmt.Errorf("insert audit entry: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record write: %w", err)
	}
	return nil
}

// Get loads one record.
func (s *Store) Get(ctx context.Context, collection, id string) (core.PersistedRecord, error) {
	var body string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT record FROM strata_records WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PersistedRecord{}, fmt.Errorf("%w: %s/%s", core.ErrRecordNotFound, collection, id)
	}
	if err != nil {
		return core.PersistedRecord{}, fmt.Errorf("query record: %w", err)
	}
	return decode(body)
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, collection string, limit int) ([]core.PersistedRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT record FROM strata_records WHERE collection = ? ORDER BY created_at DESC, id LIMIT ?`,
		collection, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.PersistedRecord
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func decode(body string) (core.PersistedRecord, error) {
	var rec core.PersistedRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return core.PersistedRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
