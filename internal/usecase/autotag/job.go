package autotag

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/metrics"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

// Job defaults.
const (
	DefaultInterval  = 5 * time.Minute
	DefaultBatchSize = 50
)

// Job periodically tags untagged tickets while autotagger:enable is on.
type Job struct {
	engine    *Engine
	tickets   TicketRepository
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewJob creates a Job. Zero interval or batch size select the defaults.
func NewJob(engine *Engine, tickets TicketRepository, interval time.Duration, batchSize int, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Job{
		engine:    engine,
		tickets:   tickets,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		baseCtx:   context.Background(),
	}
}

// Start binds the job to ctx, starts it when the current snapshot enables it
// and follows autotagger:enable afterwards. The returned func detaches the
// listener and stops the loop.
func (j *Job) Start(ctx context.Context, cache *settings.Cache) (func(), error) {
	snap, err := cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	j.baseCtx = ctx
	j.mu.Unlock()

	if snap.AutotaggerEnabled {
		j.startLoop()
	}
	unsubscribe := cache.OnChange(j.HandleSettings, settings.KeyAutotaggerEnable)
	return func() {
		unsubscribe()
		j.Stop()
	}, nil
}

// HandleSettings starts or stops the loop to follow autotagger:enable.
func (j *Job) HandleSettings(_ context.Context, _, next *settings.Snapshot) {
	if next == nil {
		return
	}
	running := j.Running()
	switch {
	case next.AutotaggerEnabled && !running:
		j.logger.Info("Autotagger enabled")
		j.startLoop()
	case !next.AutotaggerEnabled && running:
		j.logger.Info("Autotagger disabled")
		j.Stop()
	}
}

// Running reports whether the loop is active.
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancel != nil
}

func (j *Job) startLoop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(j.baseCtx)
	j.cancel = cancel
	j.done = make(chan struct{})
	go j.loop(ctx, j.done)
}

// Stop cancels the loop and waits for the current tick to finish.
func (j *Job) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (j *Job) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("Autotag run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce walks every untagged ticket, newest first, one page at a time.
// Tickets that fail or get no tags are logged and left for the next run
// without holding back the older ones; only listing errors are returned.
func (j *Job) RunOnce(ctx context.Context) error {
	var after *domain.TicketCursor
	for {
		tickets, err := j.tickets.ListUntagged(ctx, after, j.batchSize)
		if err != nil {
			return err
		}

		for i := range tickets {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.tagOne(ctx, &tickets[i])
		}
		if len(tickets) < j.batchSize {
			return nil
		}
		cursor := tickets[len(tickets)-1].Cursor()
		after = &cursor
	}
}

func (j *Job) tagOne(ctx context.Context, t *domain.Ticket) {
	log := j.logger.With(zap.String("ticket_id", t.ID))

	tags, err := j.engine.TagTicket(ctx, t)
	if err != nil {
		metrics.AutotagTicketsTotal.WithLabelValues("error").Inc()
		log.Warn("Failed to classify ticket", zap.Error(err))
		return
	}
	if tags == nil {
		metrics.AutotagTicketsTotal.WithLabelValues("skipped").Inc()
		log.Warn("Classifier produced no decision")
		return
	}
	if len(tags) == 0 {
		metrics.AutotagTicketsTotal.WithLabelValues("skipped").Inc()
		log.Debug("No tags selected")
		return
	}

	ids := make([]string, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	if err := j.tickets.SetTags(ctx, t.ID, ids); err != nil {
		metrics.AutotagTicketsTotal.WithLabelValues("error").Inc()
		log.Warn("Failed to store ticket tags", zap.Error(err))
		return
	}
	metrics.AutotagTicketsTotal.WithLabelValues("tagged").Inc()
	log.Info("Ticket tagged", zap.Strings("tags", domain.TagNames(tags)))
}
