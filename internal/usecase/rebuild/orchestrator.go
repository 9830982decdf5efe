// Package rebuild runs full index rebuilds in a separate OS process so the
// serving process never blocks on a reindex.
package rebuild

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/metrics"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

// Rebuild status values.
const (
	StatusIdle       = "idle"
	StatusRebuilding = "Rebuilding..."
	StatusConnected  = "Connected"
	StatusError      = "Error"
)

// State is the externally visible rebuild state.
type State struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

// Orchestrator allows at most one rebuild worker at a time.
type Orchestrator struct {
	config  ConfigSource
	checker ConnectionChecker
	spawner Spawner
	logger  *zap.Logger

	mu     sync.Mutex
	state  State
	worker Worker
}

// NewOrchestrator creates an idle Orchestrator.
func NewOrchestrator(config ConfigSource, checker ConnectionChecker, spawner Spawner, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		config:  config,
		checker: checker,
		spawner: spawner,
		logger:  logger,
		state:   State{Status: StatusIdle},
	}
}

// Status returns the current state.
func (o *Orchestrator) Status() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Rebuild starts a worker and returns once it is spawned. A rebuild already in
// progress or a disabled index store makes the call a no-op.
func (o *Orchestrator) Rebuild(ctx context.Context) error {
	o.mu.Lock()
	if o.state.Running {
		o.mu.Unlock()
		o.logger.Warn("Rebuild already in progress, ignoring request")
		return nil
	}
	o.state.Running = true
	o.mu.Unlock()

	worker, err := o.start(ctx)
	if err != nil || worker == nil {
		o.mu.Lock()
		o.state.Running = false
		if err != nil {
			o.state.Status = StatusError
		}
		o.mu.Unlock()
		return err
	}

	o.mu.Lock()
	if !o.state.Running {
		// disabled while spawning; await reaps the process and ignores its outcome
		o.mu.Unlock()
		err := worker.Terminate()
		go o.await(worker)
		return err
	}
	o.worker = worker
	o.state.Status = StatusRebuilding
	o.mu.Unlock()
	metrics.RebuildRunning.Set(1)

	go o.await(worker)
	return nil
}

func (o *Orchestrator) start(ctx context.Context) (Worker, error) {
	snap, err := o.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !snap.IndexStoreEnabled {
		o.logger.Debug("Rebuild requested while the index store is disabled")
		return nil, nil
	}

	if err := o.checker.CheckConnection(ctx); err != nil {
		metrics.RebuildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	o.logger.Info("Starting index rebuild worker")
	worker, err := o.spawner.Spawn(ctx)
	if err != nil {
		metrics.RebuildsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("spawn rebuild worker: %w", err)
	}
	return worker, nil
}

func (o *Orchestrator) await(w Worker) {
	out := w.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.worker != w {
		// terminated; state already reset
		return
	}
	o.worker = nil
	o.state.Running = false
	metrics.RebuildRunning.Set(0)

	if out.Success {
		o.state.Status = StatusConnected
		metrics.RebuildsTotal.WithLabelValues("success").Inc()
		o.logger.Info("Index rebuild finished")
		return
	}
	o.state.Status = StatusError
	metrics.RebuildsTotal.WithLabelValues("error").Inc()
	o.logger.Error("Index rebuild failed", zap.String("error", out.Error))
}

// HandleSettings terminates a running worker when the index store is disabled.
func (o *Orchestrator) HandleSettings(_ context.Context, _, next *settings.Snapshot) {
	if next == nil || next.IndexStoreEnabled {
		return
	}

	o.mu.Lock()
	w := o.worker
	o.worker = nil
	wasRunning := o.state.Running
	o.state = State{Status: StatusIdle}
	o.mu.Unlock()

	if w == nil {
		return
	}
	metrics.RebuildRunning.Set(0)
	if err := w.Terminate(); err != nil {
		o.logger.Warn("Failed to terminate rebuild worker", zap.Error(err))
	}
	if wasRunning {
		metrics.RebuildsTotal.WithLabelValues("cancelled").Inc()
		o.logger.Info("Index rebuild cancelled")
	}
}

// Watch registers HandleSettings for indexstore:enable.
func (o *Orchestrator) Watch(cache *settings.Cache) func() {
	return cache.OnChange(o.HandleSettings, settings.KeyIndexStoreEnable)
}
