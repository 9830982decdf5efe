package faq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/db"
	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/eventbus"
	"github.com/kailas-cloud/deskindex/internal/repository/index"
	"github.com/kailas-cloud/deskindex/internal/settings"
	"github.com/kailas-cloud/deskindex/internal/usecase/search"
)

// publishWithin fails the test when publishing does not return in time.
func publishWithin(t *testing.T, bus *eventbus.Bus, topic string, event any) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- bus.Publish(context.Background(), topic, event) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("publish %s: %v", topic, err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("publish %s did not return", topic)
	}
}

func enableEvent(key string) settings.ChangeEvent {
	return settings.ChangeEvent{Name: key, Value: json.RawMessage(`true`)}
}

// TestEnableAtRuntime wires the bus, settings cache, index manager, engine and
// FAQ source the way the server does and flips the features on through the bus.
func TestEnableAtRuntime(t *testing.T) {
	tests := []struct {
		name  string
		order []string
	}{
		// search listener registers the source
		{"index store then search", []string{settings.KeyIndexStoreEnable, settings.KeySearchEnable}},
		// index ready callback registers the source
		{"search then index store", []string{settings.KeySearchEnable, settings.KeyIndexStoreEnable}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			bus := eventbus.New(zap.NewNop())
			defer bus.Close()

			cache := settings.NewCache(settingsReader{}, zap.NewNop())
			if _, err := cache.Subscribe(ctx, bus); err != nil {
				t.Fatalf("subscribe settings: %v", err)
			}

			store := newMemStore()
			manager := index.NewManager(cache, func(string) (db.Store, error) { return store, nil },
				index.DefaultDescriptors(), zap.NewNop())
			defer manager.Close()
			publicQA, _ := manager.Descriptor(index.PublicQA)

			src := New(newPagedRepo(0), bus, 0, zap.NewNop())
			defer src.Close()
			if err := src.Listen(ctx); err != nil {
				t.Fatalf("listen: %v", err)
			}

			engine := search.New(cache, manager, constEmbedder{}, publicQA, zap.NewNop()).AddSource(src)
			defer engine.Close()
			if err := engine.Init(ctx); err != nil {
				t.Fatalf("init: %v", err)
			}
			manager.OnReady(func(ctx context.Context) {
				if err := engine.Init(ctx); err != nil {
					t.Errorf("init on ready: %v", err)
				}
			})
			defer manager.Watch(cache)()

			for _, key := range tc.order {
				publishWithin(t, bus, eventbus.TopicSettingsUpdated, enableEvent(key))
			}
			publishWithin(t, bus, eventbus.TopicFAQCreated, ChangedEvent{
				FAQ: domain.FAQ{ID: "f1", Question: "How do I reset my password?"},
			})

			if !publicQA.Indexed() {
				t.Fatal("index not marked as created")
			}
			if !store.has(publicQA.Key("f1")) {
				t.Error("created FAQ was not indexed")
			}

			publishWithin(t, bus, eventbus.TopicFAQDeleted, DeletedEvent{ID: "f1"})
			if store.has(publicQA.Key("f1")) {
				t.Error("deleted FAQ still indexed")
			}
		})
	}
}

func TestEnableAtRuntime_RepeatedToggles(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New(zap.NewNop())
	defer bus.Close()

	cache := settings.NewCache(settingsReader{settings.KeyIndexStoreEnable: json.RawMessage(`true`)}, zap.NewNop())
	if _, err := cache.Subscribe(ctx, bus); err != nil {
		t.Fatalf("subscribe settings: %v", err)
	}
	store := newMemStore()
	desc := index.NewDescriptor(index.PublicQA, index.VectorSchema)
	desc.SetIndexed(true)

	src := New(newPagedRepo(0), bus, 0, zap.NewNop())
	defer src.Close()
	if err := src.Listen(ctx); err != nil {
		t.Fatalf("listen: %v", err)
	}
	manager := index.NewManager(cache, func(string) (db.Store, error) { return store, nil },
		[]*index.Descriptor{desc}, zap.NewNop())
	defer manager.Close()
	engine := search.New(cache, manager, constEmbedder{}, desc, zap.NewNop()).AddSource(src)
	defer engine.Close()
	if err := engine.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, v := range []string{`true`, `false`, `true`} {
		publishWithin(t, bus, eventbus.TopicSettingsUpdated,
			settings.ChangeEvent{Name: settings.KeySearchEnable, Value: json.RawMessage(v)})
	}
	publishWithin(t, bus, eventbus.TopicFAQCreated, ChangedEvent{FAQ: domain.FAQ{ID: "f2", Question: "q"}})
	if !store.has(desc.Key("f2")) {
		t.Error("created FAQ was not indexed after re-enabling search")
	}
}
