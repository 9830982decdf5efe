package rebuild

import (
	"context"

	"github.com/kailas-cloud/deskindex/internal/settings"
)

// ConfigSource returns the current settings snapshot.
type ConfigSource interface {
	Get(ctx context.Context) (*settings.Snapshot, error)
}

// ConnectionChecker probes the index store.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// Spawner starts an isolated rebuild worker.
type Spawner interface {
	Spawn(ctx context.Context) (Worker, error)
}

// Worker is a handle on a running rebuild worker.
type Worker interface {
	// Wait blocks until the worker exits and returns its reported outcome.
	Wait() Outcome
	// Terminate asks the worker to stop.
	Terminate() error
}

// IndexLifecycle drops and recreates every registered index.
type IndexLifecycle interface {
	DeleteAll(ctx context.Context) error
	CreateAll(ctx context.Context) error
}

// Syncer streams every source into the index.
type Syncer interface {
	Sync(ctx context.Context) error
}
