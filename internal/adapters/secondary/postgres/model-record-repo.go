package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"model-artefact-registry/internal/core/domain"
	output "model-artefact-registry/internal/core/ports/output"
)

const schema = `
	CREATE TABLE IF NOT EXISTS model_registry_model_record (
		model_id        TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT,
		tags            JSONB,
		created_at      TIMESTAMPTZ NOT NULL,
		last_updated_at TIMESTAMPTZ NOT NULL,
		version         INTEGER NOT NULL DEFAULT 1
	)
`

const recordColumns = `model_id, name, description, tags, created_at, last_updated_at, version`

type modelRecordRepo struct {
	pool *pgxpool.Pool
}

// NewModelRecordRepository creates a ModelRecordRepository backed by the
// model_registry_model_record table.
func NewModelRecordRepository(pool *pgxpool.Pool) output.ModelRecordRepository {
	return &modelRecordRepo{pool: pool}
}

// EnsureSchema creates the model_registry_model_record table when it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return classify("ensure model record schema", err)
	}
	return nil
}

func (r *modelRecordRepo) Create(ctx context.Context, record *domain.ModelRecord) error {
	tagsJSON, err := domain.EncodeTags(record.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	query := `
		INSERT INTO model_registry_model_record (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		record.ModelID, record.Name, record.Description, tagsJSON,
		record.CreatedAt, record.LastUpdatedAt, record.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrModelAlreadyExists
		}
		return classify("create model record", err)
	}
	return nil
}

func (r *modelRecordRepo) GetByID(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	query := `SELECT ` + recordColumns + ` FROM model_registry_model_record WHERE model_id = $1`

	record, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, classify("get model record", err)
	}
	return record, true, nil
}

// Update overwrites every mutable column of an existing row. It never
// inserts; a row deleted in the meantime reports false.
func (r *modelRecordRepo) Update(ctx context.Context, record *domain.ModelRecord) (bool, error) {
	tagsJSON, err := domain.EncodeTags(record.Tags)
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}

	query := `
		UPDATE model_registry_model_record
		SET name = $1, description = $2, tags = $3, last_updated_at = $4
		WHERE model_id = $5
	`

	tag, err := r.pool.Exec(ctx, query,
		record.Name, record.Description, tagsJSON, record.LastUpdatedAt, record.ModelID,
	)
	if err != nil {
		return false, classify("update model record", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *modelRecordRepo) Delete(ctx context.Context, id string) (*domain.ModelRecord, bool, error) {
	query := `DELETE FROM model_registry_model_record WHERE model_id = $1 RETURNING ` + recordColumns

	record, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, classify("delete model record", err)
	}
	return record, true, nil
}

func (r *modelRecordRepo) List(ctx context.Context) ([]*domain.ModelRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM model_registry_model_record ORDER BY created_at, model_id`

	rows, err := r.pool.Query(ctx, query)
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

func (r *modelRecordRepo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return classify("ping database", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*domain.ModelRecord, error) {
	record := &domain.ModelRecord{}
	var tagsJSON []byte

	err := row.Scan(
		&record.ModelID, &record.Name, &record.Description, &tagsJSON,
		&record.CreatedAt, &record.LastUpdatedAt, &record.Version,
	)
	if err != nil {
		return nil, err
	}

	tags, err := domain.DecodeTags(tagsJSON)
	if err != nil {
		return nil, err
	}
	record.Tags = tags
	record.CreatedAt = record.CreatedAt.UTC()
	record.LastUpdatedAt = record.LastUpdatedAt.UTC()
	return record, nil
}

// classify maps a driver error onto the storage error classes. Class 28
// (invalid authorization) and 42501 (insufficient privilege) are access
// problems; everything else is treated as the backend being unavailable.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "28") || pgErr.Code == "42501" {
			return fmt.Errorf("%s: %w: %w", op, domain.ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
