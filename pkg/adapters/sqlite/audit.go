// Package sqlite provides a SQLite-backed audit store for single-node
// deployments that need the trail to survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tellerflow/tellerflow/pkg/domain"
)

// AuditStore implements ports.AuditStore using SQLite.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore creates a new SQLite-backed audit store.
func NewAuditStore(dbPath string) (*AuditStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &AuditStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *AuditStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS audit_records (
		key TEXT PRIMARY KEY,
		ref_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		status TEXT NOT NULL,
		input_json TEXT NOT NULL,
		output_json TEXT,
		error_message TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_records(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_records(session_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *AuditStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Append inserts a new record. The primary key makes the insert the
// atomic duplicate check.
func (s *AuditStore) Append(ctx context.Context, record *domain.IdempotencyRecord) error {
	inputJSON, outputJSON, err := marshalSnapshots(record)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO audit_records (
		key, ref_id, user_id, session_id, intent, status,
		input_json, output_json, error_message, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query,
		record.Key, record.RefID, record.UserID, record.SessionID,
		record.Intent, string(record.Status),
		inputJSON, outputJSON, record.ErrorMessage,
		record.CreatedAt.UnixNano(), record.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDuplicateRecord
	}

	return nil
}

// Update replaces an existing record (the terminal status transition).
func (s *AuditStore) Update(ctx context.Context, record *domain.IdempotencyRecord) error {
	_, outputJSON, err := marshalSnapshots(record)
	if err != nil {
		return err
	}

	query := `
	UPDATE audit_records
	SET status = ?, output_json = ?, error_message = ?, updated_at = ?
	WHERE key = ?`

	result, err := s.db.ExecContext(ctx, query,
		string(record.Status), outputJSON, record.ErrorMessage,
		record.UpdatedAt.UnixNano(), record.Key,
	)
	if err != nil {
		return fmt.Errorf("update audit record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

// GetByKey returns the record for an idempotency key.
func (s *AuditStore) GetByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	query := selectColumns + ` FROM audit_records WHERE key = ?`
	return scanRecord(s.db.QueryRowContext(ctx, query, key))
}

// GetByUser returns up to limit records for a user, most recent first.
func (s *AuditStore) GetByUser(ctx context.Context, userID string, limit int) ([]*domain.IdempotencyRecord, error) {
	query := selectColumns + `
	FROM audit_records WHERE user_id = ?
	ORDER BY created_at DESC, rowid DESC`

	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryRecords(ctx, query, args...)
}

// GetBySession returns all records for a session, most recent first.
func (s *AuditStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.IdempotencyRecord, error) {
	query := selectColumns + `
	FROM audit_records WHERE session_id = ?
	ORDER BY created_at DESC, rowid DESC`

	return s.queryRecords(ctx, query, sessionID)
}

// Close closes the database connection.
func (s *AuditStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT key, ref_id, user_id, session_id, intent, status,
	       input_json, output_json, error_message, created_at, updated_at`

func (s *AuditStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*domain.IdempotencyRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	records := []*domain.IdempotencyRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*domain.IdempotencyRecord, error) {
	var record domain.IdempotencyRecord
	var status, inputJSON string
	var outputJSON, errorMessage sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&record.Key, &record.RefID, &record.UserID, &record.SessionID,
		&record.Intent, &status,
		&inputJSON, &outputJSON, &errorMessage,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan audit record: %w", err)
	}

	record.Status = domain.RecordStatus(status)
	record.ErrorMessage = errorMessage.String
	record.CreatedAt = time.Unix(0, createdAt)
	record.UpdatedAt = time.Unix(0, updatedAt)

	if err := json.Unmarshal([]byte(inputJSON), &record.InputSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal input snapshot: %w", err)
	}
	if outputJSON.Valid {
		if err := json.Unmarshal([]byte(outputJSON.String), &record.OutputSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal output snapshot: %w", err)
		}
	}

	return &record, nil
}

func marshalSnapshots(record *domain.IdempotencyRecord) (string, interface{}, error) {
	inputJSON, err := json.Marshal(record.InputSnapshot)
	if err != nil {
		return "", nil, fmt.Errorf("marshal input snapshot: %w", err)
	}

	var outputJSON interface{}
	if record.OutputSnapshot != nil {
		data, err := json.Marshal(record.OutputSnapshot)
		if err != nil {
			return "", nil, fmt.Errorf("marshal output snapshot: %w", err)
		}
		outputJSON = string(data)
	}

	return string(inputJSON), outputJSON, nil
}
