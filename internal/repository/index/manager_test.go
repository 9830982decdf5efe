package index

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/db"
	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

func newTestManager(cfg *mutableConfig, store *mockStore) (*Manager, *countingFactory) {
	f := &countingFactory{store: store}
	m := NewManager(cfg, f.build, DefaultDescriptors(), zap.NewNop())
	return m, f
}

func TestVectorSchema(t *testing.T) {
	snap := enabledSnapshot()
	snap.EmbeddingDimension = 768
	snap.SimilarityFunction = "dot_product"

	def, err := VectorSchema(PublicQA, snap, HNSWConfig{M: 16, EFConstruct: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != PublicQA || def.Prefixes[0] != "public-qa:" {
		t.Errorf("unexpected definition %+v", def)
	}
	if len(def.Fields) != 2 || def.Fields[0].Name != FieldType || def.Fields[0].Type != db.IndexFieldTag {
		t.Fatalf("unexpected fields %+v", def.Fields)
	}
	vec := def.Fields[1]
	if vec.VectorDim != 768 || vec.VectorDistance != db.DistanceIP || vec.VectorM != 16 {
		t.Errorf("unexpected vector field %+v", vec)
	}
}

func TestVectorSchema_UnknownSimilarity(t *testing.T) {
	snap := enabledSnapshot()
	snap.SimilarityFunction = "hamming"

	_, err := VectorSchema(PublicQA, snap, HNSWConfig{})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestManager_ClientMemoized(t *testing.T) {
	m, f := newTestManager(&mutableConfig{snap: enabledSnapshot()}, &mockStore{})
	ctx := context.Background()

	for range 3 {
		if _, err := m.Client(ctx); err != nil {
			t.Fatalf("client: %v", err)
		}
	}
	if f.calls() != 1 {
		t.Errorf("factory called %d times, want 1", f.calls())
	}
	if f.addrs[0] != "localhost:6379" {
		t.Errorf("addr = %q", f.addrs[0])
	}
}

func TestManager_CreateIdempotent(t *testing.T) {
	store := &mockStore{indexExistsFn: func(context.Context, string) (bool, error) { return true, nil }}
	m, _ := newTestManager(&mutableConfig{snap: enabledSnapshot()}, store)
	d, _ := m.Descriptor(PublicQA)

	if err := m.Create(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(store.created) != 0 {
		t.Error("existing index must not be re-created")
	}
	if !d.Indexed() {
		t.Error("expected indexed=true")
	}
}

func TestManager_CreateRaceTreatedAsExisting(t *testing.T) {
	store := &mockStore{createIndexFn: func(context.Context, *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
	}}
	m, _ := newTestManager(&mutableConfig{snap: enabledSnapshot()}, store)
	d, _ := m.Descriptor(PublicQA)

	if err := m.Create(context.Background(), d); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !d.Indexed() {
		t.Error("expected indexed=true")
	}
}

func TestManager_DeleteIdempotent(t *testing.T) {
	store := &mockStore{dropIndexFn: func(context.Context, string) error { return db.ErrIndexNotFound }}
	m, _ := newTestManager(&mutableConfig{snap: enabledSnapshot()}, store)
	d, _ := m.Descriptor(PublicQA)
	d.SetIndexed(true)

	if err := m.Delete(context.Background(), d); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if d.Indexed() {
		t.Error("expected indexed=false")
	}
}

func TestManager_DisabledIsNoop(t *testing.T) {
	store := &mockStore{pingFn: func(context.Context) error { return errors.New("down") }}
	m, f := newTestManager(&mutableConfig{snap: &settings.Snapshot{}}, store)
	ctx := context.Background()
	d, _ := m.Descriptor(PublicQA)

	if err := m.CheckConnection(ctx); err != nil {
		t.Errorf("check connection: %v", err)
	}
	if err := m.Create(ctx, d); err != nil {
		t.Errorf("create: %v", err)
	}
	if err := m.Delete(ctx, d); err != nil {
		t.Errorf("delete: %v", err)
	}
	if len(store.created) != 0 || len(store.dropped) != 0 || f.calls() != 0 {
		t.Error("disabled manager must not touch the store")
	}

	if _, err := m.Exists(ctx, d); err != nil {
		t.Errorf("exists must work while disabled: %v", err)
	}
}

func TestManager_HandleSettingsLifecycle(t *testing.T) {
	store := &mockStore{}
	cfg := &mutableConfig{snap: enabledSnapshot()}
	m, f := newTestManager(cfg, store)
	ctx := context.Background()

	ready := 0
	m.OnReady(func(context.Context) { ready++ })

	disabled := enabledSnapshot()
	disabled.IndexStoreEnabled = false

	// false -> true: setup
	m.HandleSettings(ctx, disabled, enabledSnapshot())
	if ready != 1 || len(store.created) != 1 {
		t.Fatalf("setup not run: ready=%d created=%d", ready, len(store.created))
	}
	d, _ := m.Descriptor(PublicQA)
	if !d.Indexed() {
		t.Error("expected indexed after setup")
	}

	// true -> false: teardown
	cfg.set(disabled)
	m.HandleSettings(ctx, enabledSnapshot(), disabled)
	if store.closed != 1 {
		t.Errorf("closed = %d, want 1", store.closed)
	}
	if d.Indexed() {
		t.Error("expected indexed=false after teardown")
	}

	// re-enable builds a fresh client
	cfg.set(enabledSnapshot())
	m.HandleSettings(ctx, disabled, enabledSnapshot())
	if f.calls() != 2 {
		t.Errorf("factory calls = %d, want 2", f.calls())
	}
	if ready != 2 {
		t.Errorf("ready = %d, want 2", ready)
	}
}

func TestManager_HandleSettingsAddressChange(t *testing.T) {
	store := &mockStore{}
	moved := enabledSnapshot()
	moved.IndexStoreHost = "redis.internal"
	cfg := &mutableConfig{snap: enabledSnapshot()}
	m, f := newTestManager(cfg, store)
	ctx := context.Background()

	if _, err := m.Client(ctx); err != nil {
		t.Fatalf("client: %v", err)
	}
	cfg.set(moved)
	m.HandleSettings(ctx, enabledSnapshot(), moved)

	if store.closed != 1 {
		t.Errorf("old client not closed")
	}
	if f.calls() != 2 || f.addrs[1] != "redis.internal:6379" {
		t.Errorf("unexpected factory calls %v", f.addrs)
	}
}

func TestManager_SetupFailureLeavesDegraded(t *testing.T) {
	store := &mockStore{pingFn: func(context.Context) error { return errors.New("refused") }}
	m, _ := newTestManager(&mutableConfig{snap: enabledSnapshot()}, store)
	ready := 0
	m.OnReady(func(context.Context) { ready++ })

	disabled := enabledSnapshot()
	disabled.IndexStoreEnabled = false
	m.HandleSettings(context.Background(), disabled, enabledSnapshot())

	d, _ := m.Descriptor(PublicQA)
	if ready != 0 || d.Indexed() || len(store.created) != 0 {
		t.Error("failed setup must not create indices or fire ready callbacks")
	}
}

func TestManager_CreateAllCollectsErrors(t *testing.T) {
	store := &mockStore{createIndexFn: func(context.Context, *db.IndexDefinition) error {
		return errors.New("boom")
	}}
	cfg := &mutableConfig{snap: enabledSnapshot()}
	f := &countingFactory{store: store}
	descs := []*Descriptor{NewDescriptor("a", VectorSchema), NewDescriptor("b", VectorSchema)}
	m := NewManager(cfg, f.build, descs, zap.NewNop())

	err := m.CreateAll(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.created) != 2 {
		t.Errorf("expected both indices attempted, got %d", len(store.created))
	}
}
