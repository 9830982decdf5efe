package rebuild

import (
	"context"
	"sync"

	"github.com/kailas-cloud/deskindex/internal/settings"
)

type mutableConfig struct {
	mu   sync.Mutex
	snap *settings.Snapshot
}

func (m *mutableConfig) Get(context.Context) (*settings.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func enabled() *mutableConfig {
	return &mutableConfig{snap: &settings.Snapshot{IndexStoreEnabled: true}}
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) CheckConnection(ctx context.Context) error { return f(ctx) }

func okChecker() checkerFunc { return func(context.Context) error { return nil } }

// fakeWorker finishes when an outcome is sent on done.
type fakeWorker struct {
	done       chan Outcome
	mu         sync.Mutex
	terminated bool
	waited     bool
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{done: make(chan Outcome, 1)}
}

func (w *fakeWorker) Wait() Outcome {
	out := <-w.done
	w.mu.Lock()
	w.waited = true
	w.mu.Unlock()
	return out
}

func (w *fakeWorker) Waited() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.waited
}

func (w *fakeWorker) Terminate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.terminated {
		w.terminated = true
		w.done <- Outcome{Error: "terminated"}
	}
	return nil
}

func (w *fakeWorker) Terminated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminated
}

type fakeSpawner struct {
	mu      sync.Mutex
	spawned []*fakeWorker
	err     error
	onSpawn func()
}

func (s *fakeSpawner) Spawn(context.Context) (Worker, error) {
	if s.onSpawn != nil {
		s.onSpawn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	w := newFakeWorker()
	s.spawned = append(s.spawned, w)
	return w, nil
}

func (s *fakeSpawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spawned)
}

func (s *fakeSpawner) Last() *fakeWorker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned[len(s.spawned)-1]
}

type recordingLifecycle struct {
	calls     []string
	deleteErr error
	createErr error
}

func (r *recordingLifecycle) DeleteAll(context.Context) error {
	r.calls = append(r.calls, "delete")
	return r.deleteErr
}

func (r *recordingLifecycle) CreateAll(context.Context) error {
	r.calls = append(r.calls, "create")
	return r.createErr
}

type syncerFunc func(ctx context.Context) error

func (f syncerFunc) Sync(ctx context.Context) error { return f(ctx) }
