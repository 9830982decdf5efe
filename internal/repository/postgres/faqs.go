package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/deskindex/internal/domain"
)

// FAQRepo reads FAQ entries.
type FAQRepo struct {
	db DBTX
}

// NewFAQRepo creates a FAQRepo.
func NewFAQRepo(db DBTX) *FAQRepo {
	return &FAQRepo{db: db}
}

// Page returns up to limit FAQs with id greater than afterID, ordered by id.
func (r *FAQRepo) Page(ctx context.Context, afterID string, limit int) ([]domain.FAQ, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, question, answer FROM faqs WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query faqs: %w", err)
	}
	faqs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.FAQ, error) {
		var f domain.FAQ
		err := row.Scan(&f.ID, &f.Question, &f.Answer)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan faqs: %w", err)
	}
	return faqs, nil
}
