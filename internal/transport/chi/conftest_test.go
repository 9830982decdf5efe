package chi

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/settings"
	healthuc "github.com/kailas-cloud/deskindex/internal/usecase/health"
	"github.com/kailas-cloud/deskindex/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/deskindex/internal/usecase/search"
)

type searchCall struct {
	query    string
	limit    int
	minScore float64
}

type mockSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	results []searchuc.Result
	err     error
}

func (m *mockSearcher) Search(_ context.Context, query string, limit int, minScore float64) ([]searchuc.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, searchCall{query, limit, minScore})
	return m.results, m.err
}

type mockRebuilder struct {
	calls int
	state rebuild.State
	err   error
}

func (m *mockRebuilder) Rebuild(context.Context) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.state = rebuild.State{Status: rebuild.StatusRebuilding, Running: true}
	return nil
}

func (m *mockRebuilder) Status() rebuild.State { return m.state }

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type staticConfig struct {
	snap *settings.Snapshot
}

func (s staticConfig) Get(context.Context) (*settings.Snapshot, error) { return s.snap, nil }

type fixture struct {
	search  *mockSearcher
	rebuild *mockRebuilder
	health  *mockHealth
	server  *Server
}

func newFixture() *fixture {
	f := &fixture{
		search:  &mockSearcher{},
		rebuild: &mockRebuilder{state: rebuild.State{Status: rebuild.StatusIdle}},
		health:  &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}},
	}
	cfg := staticConfig{snap: &settings.Snapshot{IndexStoreEnabled: true, SearchEnabled: true, Enabled: true}}
	f.server = NewServer(f.search, f.rebuild, f.health, cfg, zap.NewNop())
	return f
}
