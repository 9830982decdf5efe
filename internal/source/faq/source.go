// Package faq feeds published FAQ entries into semantic search.
package faq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/eventbus"
	"github.com/kailas-cloud/deskindex/internal/usecase/search"
)

// Document layout of FAQ entries in the index.
const (
	Type          = "FAQ"
	IDField       = "id"
	EmbeddedField = "question"
)

// DefaultBatchSize is the number of FAQs pulled and bulk-indexed per page.
const DefaultBatchSize = 10

// Repository pages through FAQs ordered by id.
type Repository interface {
	Page(ctx context.Context, afterID string, limit int) ([]domain.FAQ, error)
}

// Subscriber subscribes handlers to bus topics.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler eventbus.Handler) (func(), error)
}

// ChangedEvent is the payload of faq.created and faq.updated.
type ChangedEvent struct {
	FAQ domain.FAQ `json:"faq"`
}

// DeletedEvent is the payload of faq.deleted.
type DeletedEvent struct {
	ID string `json:"id"`
}

// Source implements search.Source for FAQs.
type Source struct {
	repo      Repository
	bus       Subscriber
	batchSize int
	logger    *zap.Logger

	mu     sync.Mutex
	target search.Indexer
	unsubs []func()
}

var _ search.Source = (*Source)(nil)

// New creates a FAQ source. A non-positive batchSize selects DefaultBatchSize.
func New(repo Repository, bus Subscriber, batchSize int, logger *zap.Logger) *Source {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Source{repo: repo, bus: bus, batchSize: batchSize, logger: logger.With(zap.String("source", Type))}
}

// Type implements search.Source.
func (s *Source) Type() string { return Type }

// Document converts a FAQ into an index document.
func Document(f domain.FAQ) (search.Document, error) {
	return search.NewDocument(Type, IDField, EmbeddedField, f)
}

// Listen subscribes to FAQ lifecycle events. It must run outside of bus
// handlers, once at startup; later calls are no-ops. Events arriving before
// Register are dropped.
func (s *Source) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.unsubs) > 0 {
		return nil
	}

	handlers := map[string]eventbus.Handler{
		eventbus.TopicFAQCreated: s.onChanged(search.Indexer.Insert),
		eventbus.TopicFAQUpdated: s.onChanged(search.Indexer.Update),
		eventbus.TopicFAQDeleted: s.onDeleted,
	}
	for _, topic := range []string{eventbus.TopicFAQCreated, eventbus.TopicFAQUpdated, eventbus.TopicFAQDeleted} {
		unsub, err := s.bus.Subscribe(ctx, topic, handlers[topic])
		if err != nil {
			s.closeLocked()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		s.unsubs = append(s.unsubs, unsub)
	}
	s.logger.Debug("Listening for FAQ events")
	return nil
}

// Register routes FAQ events to idx, replacing the previous target. It never
// touches the bus, so it is safe to call from a settings handler.
func (s *Source) Register(_ context.Context, idx search.Indexer) error {
	s.mu.Lock()
	s.target = idx
	s.mu.Unlock()
	s.logger.Debug("Source registered")
	return nil
}

// Close drops the event subscriptions and the target indexer.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	s.target = nil
}

func (s *Source) closeLocked() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

func (s *Source) indexer() search.Indexer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

func (s *Source) onChanged(write func(search.Indexer, context.Context, search.Document) error) eventbus.Handler {
	return func(ctx context.Context, payload []byte) error {
		idx := s.indexer()
		if idx == nil {
			return nil
		}
		var ev ChangedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode faq event: %w", err)
		}
		doc, err := Document(ev.FAQ)
		if err != nil {
			return err
		}
		if err := write(idx, ctx, doc); err != nil {
			s.logger.Warn("Failed to index FAQ", zap.String("id", ev.FAQ.ID), zap.Error(err))
		}
		return nil
	}
}

func (s *Source) onDeleted(ctx context.Context, payload []byte) error {
	idx := s.indexer()
	if idx == nil {
		return nil
	}
	var ev DeletedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode faq event: %w", err)
	}
	if ev.ID == "" {
		return errors.New("faq.deleted without id")
	}
	if err := idx.Delete(ctx, Type, ev.ID); err != nil {
		s.logger.Warn("Failed to remove FAQ from index", zap.String("id", ev.ID), zap.Error(err))
	}
	return nil
}

// Sync pages through all FAQs by id and bulk-indexes each page before pulling
// the next one, so at most one page is held in memory.
func (s *Source) Sync(ctx context.Context, idx search.Indexer) error {
	var (
		after string
		total int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.repo.Page(ctx, after, s.batchSize)
		if err != nil {
			return fmt.Errorf("load faqs after %q: %w", after, err)
		}
		if len(page) == 0 {
			break
		}

		docs := make([]search.Document, 0, len(page))
		for _, f := range page {
			doc, err := Document(f)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		if _, err := idx.Bulk(ctx, docs); err != nil {
			return fmt.Errorf("bulk index faqs: %w", err)
		}

		total += len(page)
		after = page[len(page)-1].ID
		if len(page) < s.batchSize {
			break
		}
	}
	s.logger.Info("FAQ sync finished", zap.Int("total", total))
	return nil
}
