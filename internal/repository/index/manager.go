// Package index manages the search indices in the index store and the shared
// store client they are accessed through.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/db"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

// Factory builds an index store client for addr (host:port).
type Factory func(addr string) (db.Store, error)

// ConfigSource returns the current settings snapshot.
type ConfigSource interface {
	Get(ctx context.Context) (*settings.Snapshot, error)
}

// Manager owns the index store client and the lifecycle of registered indices.
// Create, Delete and CheckConnection do nothing while indexstore:enable is off;
// Exists and Client work regardless.
type Manager struct {
	config      ConfigSource
	factory     Factory
	hnsw        HNSWConfig
	descriptors []*Descriptor
	logger      *zap.Logger

	mu     sync.Mutex
	client db.Store
	addr   string

	readyMu sync.Mutex
	onReady []func(ctx context.Context)
}

// NewManager creates a Manager over descriptors.
func NewManager(config ConfigSource, factory Factory, descriptors []*Descriptor, logger *zap.Logger) *Manager {
	return &Manager{
		config:      config,
		factory:     factory,
		descriptors: descriptors,
		logger:      logger,
	}
}

// WithHNSW configures HNSW index parameters.
func (m *Manager) WithHNSW(cfg HNSWConfig) *Manager {
	m.hnsw = cfg
	return m
}

// Descriptor looks up a registered index by name.
func (m *Manager) Descriptor(name string) (*Descriptor, bool) {
	for _, d := range m.descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// OnReady registers fn to run after every successful setup.
func (m *Manager) OnReady(fn func(ctx context.Context)) {
	m.readyMu.Lock()
	m.onReady = append(m.onReady, fn)
	m.readyMu.Unlock()
}

// Client returns the memoized store client, building it on first use.
func (m *Manager) Client(ctx context.Context) (db.Store, error) {
	snap, err := m.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	addr := snap.IndexStoreAddr()
	client, err := m.factory(addr)
	if err != nil {
		return nil, fmt.Errorf("connect index store %s: %w", addr, err)
	}
	m.client, m.addr = client, addr
	m.logger.Info("Index store client created", zap.String("addr", addr))
	return client, nil
}

// Reset closes the memoized client so the next Client call builds a fresh one.
func (m *Manager) Reset() {
	m.mu.Lock()
	client, addr := m.client, m.addr
	m.client, m.addr = nil, ""
	m.mu.Unlock()

	if client != nil {
		client.Close()
		m.logger.Info("Index store client closed", zap.String("addr", addr))
	}
	for _, d := range m.descriptors {
		d.SetIndexed(false)
	}
}

// Close releases the store client.
func (m *Manager) Close() {
	m.Reset()
}

func (m *Manager) enabled(ctx context.Context) (*settings.Snapshot, bool, error) {
	snap, err := m.config.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load settings: %w", err)
	}
	return snap, snap.IndexStoreEnabled, nil
}

// CheckConnection pings the index store.
func (m *Manager) CheckConnection(ctx context.Context) error {
	_, ok, err := m.enabled(ctx)
	if err != nil || !ok {
		return err
	}
	client, err := m.Client(ctx)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		m.logger.Warn("Index store connection check failed", zap.Error(err))
		return fmt.Errorf("index store unreachable: %w", err)
	}
	m.logger.Debug("Index store connected")
	return nil
}

// Exists reports whether the index of d exists in the store.
func (m *Manager) Exists(ctx context.Context, d *Descriptor) (bool, error) {
	client, err := m.Client(ctx)
	if err != nil {
		return false, err
	}
	ok, err := client.IndexExists(ctx, d.Name)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", d.Name, err)
	}
	return ok, nil
}

// Create creates the index of d unless it already exists.
func (m *Manager) Create(ctx context.Context, d *Descriptor) error {
	snap, ok, err := m.enabled(ctx)
	if err != nil || !ok {
		return err
	}

	exists, err := m.Exists(ctx, d)
	if err != nil {
		return err
	}
	if exists {
		d.SetIndexed(true)
		return nil
	}

	def, err := d.Schema(snap, m.hnsw)
	if err != nil {
		return fmt.Errorf("build schema %s: %w", d.Name, err)
	}

	client, err := m.Client(ctx)
	if err != nil {
		return err
	}
	if err := client.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", d.Name, err)
	}
	d.SetIndexed(true)
	m.logger.Info("Index created", zap.String("index", d.Name), zap.String("schema", def.String()))
	return nil
}

// Delete drops the index of d with its documents. A missing index is a no-op.
func (m *Manager) Delete(ctx context.Context, d *Descriptor) error {
	_, ok, err := m.enabled(ctx)
	if err != nil || !ok {
		return err
	}

	client, err := m.Client(ctx)
	if err != nil {
		return err
	}
	if err := client.DropIndex(ctx, d.Name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("delete index %s: %w", d.Name, err)
	}
	d.SetIndexed(false)
	m.logger.Info("Index deleted", zap.String("index", d.Name))
	return nil
}

// CreateAll ensures every registered index exists. Failures are collected.
func (m *Manager) CreateAll(ctx context.Context) error {
	var errs []error
	for _, d := range m.descriptors {
		if err := m.Create(ctx, d); err != nil {
			m.logger.Error("Failed to create index", zap.String("index", d.Name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeleteAll drops every registered index. Failures are collected.
func (m *Manager) DeleteAll(ctx context.Context) error {
	var errs []error
	for _, d := range m.descriptors {
		if err := m.Delete(ctx, d); err != nil {
			m.logger.Error("Failed to delete index", zap.String("index", d.Name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Setup runs connection check, index creation and the ready callbacks.
// It is a no-op while the index store is disabled.
func (m *Manager) Setup(ctx context.Context) error {
	_, ok, err := m.enabled(ctx)
	if err != nil || !ok {
		return err
	}

	m.logger.Info("Initializing index store")
	if err := m.CheckConnection(ctx); err != nil {
		return err
	}
	if err := m.CreateAll(ctx); err != nil {
		return err
	}

	m.readyMu.Lock()
	callbacks := append([]func(context.Context){}, m.onReady...)
	m.readyMu.Unlock()
	for _, fn := range callbacks {
		fn(ctx)
	}
	return nil
}

// HandleSettings reacts to indexstore:enable/host/port changes: disabling or
// moving the store tears the client down, enabling or moving it while enabled
// runs Setup. Setup failures leave the feature degraded.
func (m *Manager) HandleSettings(ctx context.Context, prev, next *settings.Snapshot) {
	if next == nil {
		return
	}

	wasEnabled := prev != nil && prev.IndexStoreEnabled
	moved := prev != nil && prev.IndexStoreAddr() != next.IndexStoreAddr()

	if (wasEnabled && !next.IndexStoreEnabled) || moved || prev == nil {
		m.Reset()
	}
	if !next.IndexStoreEnabled {
		return
	}
	if wasEnabled && !moved {
		return
	}
	if err := m.Setup(ctx); err != nil {
		m.logger.Warn("Index store setup failed", zap.Error(err))
	}
}

// Watch registers HandleSettings for the index store keys.
func (m *Manager) Watch(cache *settings.Cache) func() {
	return cache.OnChange(m.HandleSettings,
		settings.KeyIndexStoreEnable,
		settings.KeyIndexStoreHost,
		settings.KeyIndexStorePort,
	)
}
