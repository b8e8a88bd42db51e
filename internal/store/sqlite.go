package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements AccessLog using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ AccessLog = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// RecordAccess appends rec. Missing ID and CreatedAt are filled in.
func (s *SQLiteStore) RecordAccess(ctx context.Context, rec AccessRecord) error {
	if strings.TrimSpace(rec.Provider) == "" || strings.TrimSpace(rec.Operation) == "" {
		return fmt.Errorf("access record needs a provider and an operation")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO access_log (
			id, request_id, provider, operation, outcome,
			error_kind, message_id, duration_ms, created_at
		) VALUES (
			:id, :request_id, :provider, :operation, :outcome,
			:error_kind, :message_id, :duration_ms, :created_at
		)`, rec)
	if err != nil {
		return fmt.Errorf("recording access for %s/%s: %w", rec.Provider, rec.Operation, err)
	}
	return nil
}

// RecentAccess returns matching records, newest first.
func (s *SQLiteStore) RecentAccess(
	ctx context.Context,
	filter AccessFilter,
) ([]AccessRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, filter.Operation)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	query := "SELECT * FROM access_log"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = DefaultAccessLimit
	case limit > MaxAccessLimit:
		limit = MaxAccessLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, rowid DESC LIMIT %d", limit)

	records := []AccessRecord{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("querying access log: %w", err)
	}
	return records, nil
}
