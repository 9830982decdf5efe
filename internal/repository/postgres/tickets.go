package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/deskindex/internal/domain"
)

// TicketRepo exposes the ticket fields the autotagger reads and writes.
type TicketRepo struct {
	db DBTX
}

// NewTicketRepo creates a TicketRepo.
func NewTicketRepo(db DBTX) *TicketRepo {
	return &TicketRepo{db: db}
}

// ListUntagged returns up to limit tickets without tags in (created_at, id)
// descending order, strictly after the after cursor. A nil cursor starts from
// the newest ticket.
func (r *TicketRepo) ListUntagged(ctx context.Context, after *domain.TicketCursor, limit int) ([]domain.Ticket, error) {
	var (
		createdAt *time.Time
		id        *string
	)
	if after != nil {
		createdAt, id = &after.CreatedAt, &after.ID
	}
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.subject, t.issue, t.created_at
		FROM tickets t
		WHERE NOT EXISTS (SELECT 1 FROM ticket_tags tt WHERE tt.ticket_id = t.id)
		  AND ($1::timestamptz IS NULL OR (t.created_at, t.id) < ($1::timestamptz, $2::text))
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $3`, createdAt, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query untagged tickets: %w", err)
	}
	tickets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Ticket, error) {
		var t domain.Ticket
		err := row.Scan(&t.ID, &t.Subject, &t.Issue, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan tickets: %w", err)
	}
	return tickets, nil
}

// SetTags attaches tagIDs to the ticket. Existing links are kept.
func (r *TicketRepo) SetTags(ctx context.Context, ticketID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO ticket_tags (ticket_id, tag_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`, ticketID, tagIDs)
	if err != nil {
		return fmt.Errorf("set tags of ticket %s: %w", ticketID, err)
	}
	return nil
}
