package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckDisabled marks a component switched off in settings.
	CheckDisabled CheckResult = "disabled"
)

// Component names in Report.Checks.
const (
	ComponentDatabase   = "database"
	ComponentIndexStore = "index_store"
	ComponentAI         = "ai"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	db     DBPinger
	index  IndexStoreChecker
	ai     AIChecker
	config ConfigSource
}

// New creates a Service. ai can be nil.
func New(db DBPinger, index IndexStoreChecker, ai AIChecker, config ConfigSource) *Service {
	return &Service{db: db, index: index, ai: ai, config: config}
}

// Check runs health checks against all components. The index store is only
// probed while it is enabled.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[ComponentDatabase] = result(s.db.Ping(ctx))

	snap, err := s.config.Get(ctx)
	switch {
	case err != nil:
		checks[ComponentIndexStore] = CheckError
	case snap.IndexStoreEnabled:
		checks[ComponentIndexStore] = result(s.index.CheckConnection(ctx))
	default:
		checks[ComponentIndexStore] = CheckDisabled
	}

	if s.ai != nil {
		checks[ComponentAI] = result(s.ai.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
