// Package autotag classifies untagged tickets into tags from the catalog.
package autotag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/usecase/strategy"
)

// Engine picks tags for a ticket using the classifier and the configured strategy.
type Engine struct {
	tags       TagRepository
	classifier Classifier
	config     ConfigSource
	strategies *strategy.Registry
	logger     *zap.Logger
}

// New creates an Engine.
func New(
	tags TagRepository,
	classifier Classifier,
	config ConfigSource,
	strategies *strategy.Registry,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		tags:       tags,
		classifier: classifier,
		config:     config,
		strategies: strategies,
		logger:     logger,
	}
}

// TagTicket returns the tags chosen for t. A nil slice with a nil error means
// no decision: the ticket is nil or already tagged, or the vocabulary is empty.
// Errors from the tag store, the classifier and the strategy are returned as-is.
func (e *Engine) TagTicket(ctx context.Context, t *domain.Ticket) ([]domain.Tag, error) {
	if t == nil || t.Tagged() {
		return nil, nil
	}

	snap, err := e.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	vocabulary, err := e.vocabulary(ctx, snap.TaggerPreferences)
	if err != nil {
		return nil, err
	}
	if len(vocabulary) == 0 {
		e.logger.Debug("No tags to classify against", zap.String("ticket_id", t.ID))
		return nil, nil
	}

	result, err := e.classifier.Classify(ctx, t.Subject+"\n"+t.Issue, domain.TagNames(vocabulary), snap.TaggerInference)
	if err != nil {
		return nil, fmt.Errorf("classify ticket %s: %w", t.ID, err)
	}

	strat, opts, err := e.resolveStrategy(snap.TaggerStrategy, snap.TaggerStrategyOptions)
	if err != nil {
		return nil, err
	}

	decision, err := strat.Decide(result.Labels, result.Scores, opts)
	if err != nil {
		return nil, fmt.Errorf("decide tags: %w", err)
	}

	byName := make(map[string]domain.Tag, len(vocabulary))
	for _, tag := range vocabulary {
		byName[tag.Name] = tag
	}

	selected := make([]domain.Tag, 0, len(decision.Labels))
	for _, label := range decision.Labels {
		tag, ok := byName[label]
		if !ok {
			e.logger.Debug("Classifier returned unknown label", zap.String("label", label))
			continue
		}
		selected = append(selected, tag)
	}

	e.logger.Debug("Ticket classified",
		zap.String("ticket_id", t.ID),
		zap.Strings("tags", domain.TagNames(selected)),
	)
	return selected, nil
}

func (e *Engine) vocabulary(ctx context.Context, preferences []string) ([]domain.Tag, error) {
	if len(preferences) > 0 {
		tags, err := e.tags.ListByNames(ctx, preferences)
		if err != nil {
			return nil, fmt.Errorf("list preferred tags: %w", err)
		}
		return tags, nil
	}
	tags, err := e.tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// resolveStrategy falls back to top-n with count 3 when no strategy is configured.
func (e *Engine) resolveStrategy(name string, rawOpts []byte) (strategy.Strategy, *strategy.Options, error) {
	opts, err := strategy.ParseOptions(rawOpts)
	if err != nil {
		return nil, nil, err
	}
	if name == "" {
		name = strategy.TopN
		if opts == nil {
			count := strategy.DefaultCount
			opts = &strategy.Options{Count: &count}
		}
	}
	strat, err := e.strategies.Lookup(name)
	if err != nil {
		return nil, nil, err
	}
	return strat, opts, nil
}
