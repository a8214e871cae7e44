package render

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/thumbnail-proxy/internal/model"
)

var ErrRenderNotFound = errors.New("render not found")

// Repository stores the render journal in PostgreSQL.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// SaveRender inserts a render record into the journal.
func (r *Repository) SaveRender(ctx context.Context, rec model.Render) error {
	query := `
		INSERT INTO renders (id, spec_token, source_url, format, status, error, bytes, cache_hit, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		rec.ID, rec.SpecToken, rec.SourceURL, string(rec.Format), rec.Status,
		rec.Error, rec.Bytes, rec.CacheHit, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save: failed to save render: %w", err)
	}

	return nil
}

// GetRender retrieves a render record by ID.
func (r *Repository) GetRender(ctx context.Context, id uuid.UUID) (model.Render, error) {
	query := `
		SELECT spec_token, source_url, format, status, error, bytes, cache_hit, duration_ms, created_at
		FROM renders
		WHERE id = $1
	`

	var rec model.Render
	var format string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.SpecToken, &rec.SourceURL, &format, &rec.Status, &rec.Error,
		&rec.Bytes, &rec.CacheHit, &rec.DurationMS, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Render{}, ErrRenderNotFound
		}

		return model.Render{}, fmt.Errorf("get: failed to get render: %w", err)
	}

	rec.ID = id
	rec.Format = model.OutputFormat(format)

	return rec, nil
}

// DeleteBefore removes journal records older than the given number of days.
func (r *Repository) DeleteBefore(ctx context.Context, days int) (int64, error) {
	query := `
		DELETE FROM renders WHERE created_at < now() - make_interval(days => $1)
	`

	res, err := r.db.ExecContext(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("delete: failed to delete renders: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	return n, nil
}
