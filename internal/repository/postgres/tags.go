package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/deskindex/internal/domain"
)

// TagRepo reads the tag catalog.
type TagRepo struct {
	db DBTX
}

// NewTagRepo creates a TagRepo.
func NewTagRepo(db DBTX) *TagRepo {
	return &TagRepo{db: db}
}

// List returns all tags ordered by name.
func (r *TagRepo) List(ctx context.Context) ([]domain.Tag, error) {
	return r.query(ctx, `SELECT id, name FROM tags ORDER BY name`)
}

// ListByNames returns the tags whose names are in names, ordered by name.
func (r *TagRepo) ListByNames(ctx context.Context, names []string) ([]domain.Tag, error) {
	return r.query(ctx, `SELECT id, name FROM tags WHERE name = ANY($1) ORDER BY name`, names)
}

func (r *TagRepo) query(ctx context.Context, sql string, args ...any) ([]domain.Tag, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Tag, error) {
		var t domain.Tag
		err := row.Scan(&t.ID, &t.Name)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan tags: %w", err)
	}
	return tags, nil
}
