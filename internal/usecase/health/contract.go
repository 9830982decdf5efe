package health

import (
	"context"

	"github.com/kailas-cloud/deskindex/internal/settings"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexStoreChecker checks index store availability.
type IndexStoreChecker interface {
	CheckConnection(ctx context.Context) error
}

// AIChecker checks AI service reachability.
type AIChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConfigSource returns the current settings snapshot.
type ConfigSource interface {
	Get(ctx context.Context) (*settings.Snapshot, error)
}
