package autotag

import (
	"context"

	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

// TagRepository reads the tag catalog.
type TagRepository interface {
	List(ctx context.Context) ([]domain.Tag, error)
	ListByNames(ctx context.Context, names []string) ([]domain.Tag, error)
}

// Classifier scores candidate labels against a text.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string, useInference bool) (domain.Classification, error)
}

// ConfigSource returns the current settings snapshot.
type ConfigSource interface {
	Get(ctx context.Context) (*settings.Snapshot, error)
}

// TicketRepository lists tickets awaiting tags and stores the chosen ones.
type TicketRepository interface {
	// ListUntagged returns the next page of untagged tickets, newest first,
	// after the cursor (from the start when nil).
	ListUntagged(ctx context.Context, after *domain.TicketCursor, limit int) ([]domain.Ticket, error)
	SetTags(ctx context.Context, ticketID string, tagIDs []string) error
}
