// Package sqlite stores model records in a single-file SQLite database
// using the pure-Go modernc.org/sqlite driver. It backs the CLI's local mode
// and small single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"model-artefact-registry/internal/core/domain"
	output "model-artefact-registry/internal/core/ports/output"
)

// Timestamps are stored as fixed-width text so that lexical order matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

const recordColumns = `model_id, name, description, tags, created_at, last_updated_at, version`

// ModelRecordRepo implements ports.ModelRecordRepository on SQLite.
type ModelRecordRepo struct {
	mu sync.RWMutex
	db *sql.DB
}

var _ output.ModelRecordRepository = (*ModelRecordRepo)(nil)

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*ModelRecordRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, classify("set WAL mode", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS model_record (
		model_id        TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT,
		tags            TEXT,
		created_at      TEXT NOT NULL,
		last_updated_at TEXT NOT NULL,
		version         INTEGER NOT NULL DEFAULT 1
	);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, classify("create schema", err)
	}

	return &ModelRecordRepo{db: db}, nil
}

func (r *ModelRecordRepo) Close() error {
	return r.db.Close()
}

func (r *ModelRecordRepo) Create(ctx context.Context, record *domain.ModelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags, err := encodeTags(record.Tags)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO model_record (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(model_id) DO NOTHING`,
		record.ModelID, record.Name, record.Description, tags,
		record.CreatedAt.UTC().Format(timeLayout),
		record.LastUpdatedAt.UTC().Format(timeLayout),
		record.Version,
	)
	if err != nil {
		return classify("create model record", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify("create model record", err)
	}
	if n == 0 {
		return domain.ErrModelAlreadyExists
	}
	return nil
}

func (r *ModelRecordRepo) GetByID(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, err := scanRecord(r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM model_record WHERE model_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify("get model record", err)
	}
	return record, true, nil
}

func (r *ModelRecordRepo) Update(ctx context.Context, record *domain.ModelRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags, err := encodeTags(record.Tags)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE model_record
		SET name = ?, description = ?, tags = ?, last_updated_at = ?
		WHERE model_id = ?`,
		record.Name, record.Description, tags,
		record.LastUpdatedAt.UTC().Format(timeLayout), record.ModelID,
	)
	if err != nil {
		return false, classify("update model record", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("update model record", err)
	}
	return n == 1, nil
}

func (r *ModelRecordRepo) Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := scanRecord(r.db.QueryRowContext(ctx,
		`DELETE FROM model_record WHERE model_id = ? RETURNING `+recordColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify("delete model record", err)
	}
	return record, true, nil
}

func (r *ModelRecordRepo) List(ctx context.Context) ([]*domain.ModelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM model_record ORDER BY created_at, model_id`)
	if err != nil {
		return nil, classify("list model records", err)
	}
	defer rows.Close()

	records := []*domain.ModelRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model record row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate model record rows", err)
	}
	return records, nil
}

func (r *ModelRecordRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return classify("ping sqlite", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.ModelRecord, error) {
	var (
		record              domain.ModelRecord
		description, tags   sql.NullString
		createdAt, updateAt string
	)

	err := row.Scan(&record.ModelID, &record.Name, &description, &tags, &createdAt, &updateAt, &record.Version)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		d := description.String
		record.Description = &d
	}
	if tags.Valid {
		if record.Tags, err = domain.DecodeTags([]byte(tags.String)); err != nil {
			return nil, err
		}
	}
	if record.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if record.LastUpdatedAt, err = time.Parse(timeLayout, updateAt); err != nil {
		return nil, fmt.Errorf("parse last_updated_at: %w", err)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.LastUpdatedAt = record.LastUpdatedAt.UTC()

	return &record, nil
}

func encodeTags(t domain.Tags) (*string, error) {
	data, err := domain.EncodeTags(t)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	s := string(data)
	return &s, nil
}

// classify maps SQLite result codes onto the storage error classes.
// Permission and read-only failures are access problems; busy, locked and
// I/O failures mean the backend is unavailable.
func classify(op string, err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_AUTH:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
