package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/forgearmory/armory/internal/model"
	"github.com/forgearmory/armory/internal/telemetry"
	"github.com/forgearmory/armory/pkg/types"
)

// RequestContext carries information about where an inbound tool call
// originated from. It is attached to the call record.
type RequestContext struct {
	ClientIP  string
	RequestID string
	SessionID string
	Caller    string
}

// ManagerConfig holds the dependencies for creating a Manager.
type ManagerConfig struct {
	DB      *gorm.DB
	Logger  *zap.Logger
	Metrics telemetry.CustomMetrics

	// Dialer creates backend connections. Nil selects the streamable HTTP dialer.
	Dialer Dialer

	// RecorderBufferSize sets the call recorder's channel capacity. 0 = default.
	RecorderBufferSize int
}

// Manager owns the set of configured backends, their live connections and the
// tool registry. It is the sole mutator of registry and connection state.
//
// Management operations on the same backend name are serialized against each
// other; operations on different backends, and all call dispatch, proceed
// concurrently.
type Manager struct {
	db       *gorm.DB
	logger   *zap.Logger
	metrics  telemetry.CustomMetrics
	registry *Registry
	recorder *Recorder
	dial     Dialer

	connMu sync.RWMutex
	conns  map[string]Conn

	// locks holds one mutex per backend name, acquired only for management
	// operations, never for call dispatch.
	locks sync.Map
}

// NewManager creates a backend manager. It does not connect to any backend;
// call ConnectAll to bring up connections for the enabled set.
func NewManager(conf *ManagerConfig) (*Manager, error) {
	if conf.DB == nil {
		return nil, fmt.Errorf("manager requires a database connection")
	}
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := conf.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopCustomMetrics()
	}
	dial := conf.Dialer
	if dial == nil {
		dial = NewHTTPConn
	}
	return &Manager{
		db:       conf.DB,
		logger:   logger,
		metrics:  metrics,
		registry: NewRegistry(logger, metrics),
		recorder: NewRecorder(conf.DB, logger, conf.RecorderBufferSize),
		dial:     dial,
		conns:    make(map[string]Conn),
	}, nil
}

// Registry returns the tool registry for read access.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// lockBackend acquires the management lock for one backend name and returns
// the corresponding unlock function.
func (m *Manager) lockBackend(name string) func() {
	v, _ := m.locks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *Manager) getConn(name string) Conn {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.conns[name]
}

func (m *Manager) setConn(name string, c Conn) {
	m.connMu.Lock()
	m.conns[name] = c
	m.connMu.Unlock()
}

// dropConn closes and forgets the connection for a backend, if any.
func (m *Manager) dropConn(name string) {
	m.connMu.Lock()
	c := m.conns[name]
	delete(m.conns, name)
	m.connMu.Unlock()
	if c != nil {
		c.Close()
	}
}

// ConnState returns the runtime connection state for a backend.
func (m *Manager) ConnState(name string) ConnState {
	if c := m.getConn(name); c != nil {
		return c.State()
	}
	return StateDisconnected
}

// ConnectAll opens connections and refreshes tools for every enabled backend.
// Individual failures are logged and leave the backend in the errored state;
// they never fail the gateway as a whole.
func (m *Manager) ConnectAll(ctx context.Context) error {
	var backends []model.Backend
	if err := m.db.Where("enabled = ?", true).Find(&backends).Error; err != nil {
		return fmt.Errorf("failed to load enabled backends: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range backends {
		b := backends[i]
		g.Go(func() error {
			unlock := m.lockBackend(b.Name)
			defer unlock()
			if _, err := m.connectAndRefresh(ctx, &b); err != nil {
				m.logger.Error("failed to connect to backend at startup",
					zap.String("backend", b.Name), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Shutdown closes all backend connections and flushes the call recorder.
func (m *Manager) Shutdown() {
	m.connMu.Lock()
	conns := m.conns
	m.conns = make(map[string]Conn)
	m.connMu.Unlock()

	for name, c := range conns {
		c.Close()
		m.logger.Info("backend connection closed", zap.String("backend", name))
	}
	m.recorder.Close()
}

// Add validates and persists a new backend. If the backend is enabled, a
// connection is opened and an initial refresh performed; a refresh failure
// does not fail creation, the backend is simply left in the errored state.
func (m *Manager) Add(ctx context.Context, input *types.CreateBackendInput) (*model.Backend, error) {
	if err := validateBackendName(input.Name); err != nil {
		return nil, err
	}
	if input.URL == "" {
		return nil, errValidation("url is required")
	}
	if input.Prefix != "" {
		if err := validateBackendName(input.Prefix); err != nil {
			return nil, err
		}
	}
	timeout, err := validateTimeout(input.Timeout)
	if err != nil {
		return nil, err
	}

	unlock := m.lockBackend(input.Name)
	defer unlock()

	var existing model.Backend
	err = m.db.Where("name = ?", input.Name).First(&existing).Error
	if err == nil {
		return nil, errValidation("backend '%s' already exists", input.Name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInternal("failed to check for existing backend: %v", err)
	}

	prefix := input.Prefix
	if prefix == "" {
		prefix = input.Name
	}
	if err := m.checkPrefixAvailable(prefix, input.Name); err != nil {
		return nil, err
	}

	b := &model.Backend{
		Name:           input.Name,
		URL:            input.URL,
		Enabled:        boolOrDefault(input.Enabled, true),
		TimeoutSeconds: timeout,
		Prefix:         input.Prefix,
		MountEnabled:   boolOrDefault(input.MountEnabled, true),
	}
	if err := m.db.Create(b).Error; err != nil {
		return nil, errInternal("failed to persist backend %s: %v", input.Name, err)
	}
	if !b.Enabled || !b.MountEnabled {
		// false is the zero value, so the insert above deferred to the column
		// defaults; persist the explicit choice
		err := m.db.Model(b).
			Updates(map[string]any{"enabled": b.Enabled, "mount_enabled": b.MountEnabled}).Error
		if err != nil {
			return nil, errInternal("failed to persist backend %s: %v", input.Name, err)
		}
	}

	if b.Enabled {
		if _, err := m.connectAndRefresh(ctx, b); err != nil {
			m.logger.Warn("backend created but initial refresh failed",
				zap.String("backend", b.Name), zap.Error(err))
		}
	}
	return b, nil
}

// checkPrefixAvailable fails with a conflict when another backend already
// owns the given effective prefix. Duplicate prefixes would make the mount
// path ambiguous and let refreshes steal each other's prefixed tool names.
func (m *Manager) checkPrefixAvailable(prefix, selfName string) error {
	var backends []model.Backend
	if err := m.db.Where("name <> ?", selfName).Find(&backends).Error; err != nil {
		return errInternal("failed to check prefix availability: %v", err)
	}
	for i := range backends {
		if backends[i].EffectivePrefix() == prefix {
			return errConflict("prefix '%s' is already used by backend '%s'",
				prefix, backends[i].Name)
		}
	}
	return nil
}

// Get returns a backend by name.
func (m *Manager) Get(name string) (*model.Backend, error) {
	var b model.Backend
	if err := m.db.Where("name = ?", name).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("backend '%s' not found", name)
		}
		return nil, errInternal("failed to load backend %s: %v", name, err)
	}
	return &b, nil
}

// List returns all configured backends ordered by name.
func (m *Manager) List() ([]model.Backend, error) {
	var backends []model.Backend
	if err := m.db.Order("name").Find(&backends).Error; err != nil {
		return nil, errInternal("failed to list backends: %v", err)
	}
	return backends, nil
}

// ToolCount returns the number of persisted tool rows for a backend.
func (m *Manager) ToolCount(backendID uint) (int64, error) {
	var count int64
	if err := m.db.Model(&model.Tool{}).Where("backend_id = ?", backendID).Count(&count).Error; err != nil {
		return 0, errInternal("failed to count tools: %v", err)
	}
	return count, nil
}

// Update applies a partial update to a backend and reconciles its runtime
// state: a re-enabled or re-pointed backend is reconnected and refreshed, a
// disabled one is torn down from the serving surface.
func (m *Manager) Update(ctx context.Context, name string, input *types.UpdateBackendInput) (*model.Backend, error) {
	unlock := m.lockBackend(name)
	defer unlock()

	b, err := m.Get(name)
	if err != nil {
		return nil, err
	}

	reconnect := false
	if input.URL != nil {
		if *input.URL == "" {
			return nil, errValidation("url must not be empty")
		}
		if *input.URL != b.URL {
			b.URL = *input.URL
			reconnect = true
		}
	}
	if input.Timeout != nil {
		timeout, err := validateTimeout(*input.Timeout)
		if err != nil {
			return nil, err
		}
		if timeout != b.TimeoutSeconds {
			b.TimeoutSeconds = timeout
			reconnect = true
		}
	}
	if input.Prefix != nil {
		if *input.Prefix != "" {
			if err := validateBackendName(*input.Prefix); err != nil {
				return nil, err
			}
		}
		if *input.Prefix != b.Prefix {
			next := *input.Prefix
			if next == "" {
				next = b.Name
			}
			if err := m.checkPrefixAvailable(next, b.Name); err != nil {
				return nil, err
			}
			b.Prefix = *input.Prefix
			// prefixed names change, a refresh recomputes the registry entries
			reconnect = true
		}
	}
	if input.MountEnabled != nil {
		b.MountEnabled = *input.MountEnabled
	}
	if input.Enabled != nil {
		b.Enabled = *input.Enabled
	}

	if err := m.db.Save(b).Error; err != nil {
		return nil, errInternal("failed to persist backend %s: %v", name, err)
	}

	if !b.Enabled {
		m.dropConn(name)
		m.registry.RemoveForBackend(name)
		return b, nil
	}

	if reconnect {
		m.dropConn(name)
	}
	if m.ConnState(name) != StateReady || reconnect {
		if _, err := m.connectAndRefresh(ctx, b); err != nil {
			m.logger.Warn("backend updated but refresh failed",
				zap.String("backend", name), zap.Error(err))
		}
	}
	return b, nil
}

// Remove deletes a backend: its live connection is closed, its registry
// entries discarded, its tool rows deleted and its call records detached.
func (m *Manager) Remove(name string) error {
	unlock := m.lockBackend(name)
	defer unlock()

	b, err := m.Get(name)
	if err != nil {
		return err
	}

	m.dropConn(name)
	m.registry.RemoveForBackend(name)

	err = m.db.Transaction(func(tx *gorm.DB) error {
		// detach call records before the tool rows disappear
		if err := tx.Model(&model.ToolCall{}).
			Where("tool_id IN (?)", tx.Model(&model.Tool{}).Select("id").Where("backend_id = ?", b.ID)).
			Update("tool_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("backend_id = ?", b.ID).Delete(&model.Tool{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(b).Error
	})
	if err != nil {
		return errInternal("failed to delete backend %s: %v", name, err)
	}

	m.logger.Info("backend removed", zap.String("backend", name))
	return nil
}

// Enable flips the persisted enabled flag and brings the backend up.
// Enabling an already-enabled backend is a no-op on the stored state.
func (m *Manager) Enable(ctx context.Context, name string) (*model.Backend, error) {
	unlock := m.lockBackend(name)
	defer unlock()

	b, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	if !b.Enabled {
		b.Enabled = true
		if err := m.db.Save(b).Error; err != nil {
			return nil, errInternal("failed to persist backend %s: %v", name, err)
		}
	}
	if m.ConnState(name) != StateReady {
		if _, err := m.connectAndRefresh(ctx, b); err != nil {
			m.logger.Warn("backend enabled but refresh failed",
				zap.String("backend", name), zap.Error(err))
		}
	}
	return b, nil
}

// Disable flips the persisted enabled flag, closes the connection and removes
// the backend's tools from the serving surface. The tool rows and call
// history persist; disable is reversible. Idempotent.
func (m *Manager) Disable(name string) (*model.Backend, error) {
	unlock := m.lockBackend(name)
	defer unlock()

	b, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	if b.Enabled {
		b.Enabled = false
		if err := m.db.Save(b).Error; err != nil {
			return nil, errInternal("failed to persist backend %s: %v", name, err)
		}
	}
	m.dropConn(name)
	m.registry.RemoveForBackend(name)
	return b, nil
}

// Refresh re-queries the backend's tool list and atomically replaces its
// registry entries. On any failure the prior tool set is left untouched.
// Returns the original names of the tools now registered.
func (m *Manager) Refresh(ctx context.Context, name string) ([]string, error) {
	unlock := m.lockBackend(name)
	defer unlock()

	b, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	if !b.Enabled {
		return nil, errValidation("backend '%s' is disabled, enable it before refreshing", name)
	}
	return m.connectAndRefresh(ctx, b)
}

// connectAndRefresh ensures a ready connection for the backend, fetches its
// tool list and replaces the persisted and in-memory registrations.
// Callers must hold the backend's management lock.
func (m *Manager) connectAndRefresh(ctx context.Context, b *model.Backend) ([]string, error) {
	conn := m.getConn(b.Name)
	if conn == nil || conn.State() != StateReady {
		if conn == nil {
			conn = m.dial(b, m.logger)
			m.setConn(b.Name, conn)
		}
		if err := conn.Open(ctx); err != nil {
			return nil, err
		}
	}

	tools, err := conn.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := m.persistTools(b, tools)
	if err != nil {
		return nil, err
	}
	m.registry.ReplaceForBackend(b.Name, entries)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	m.logger.Info("backend refreshed",
		zap.String("backend", b.Name), zap.Int("tools", len(names)))
	return names, nil
}

// persistTools replaces the backend's tool rows wholesale inside one
// transaction and returns the registry entries for the new set. A prefixed
// name already held by another backend is taken over: the newer registration
// wins, per the registry's collision policy.
func (m *Manager) persistTools(b *model.Backend, tools []ToolInfo) ([]*RegistryEntry, error) {
	prefix := b.EffectivePrefix()
	now := time.Now().UTC()

	rows := make([]*model.Tool, 0, len(tools))
	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("backend_id = ?", b.ID).Delete(&model.Tool{}).Error; err != nil {
			return err
		}
		for _, t := range tools {
			prefixedName := mergePrefixedName(prefix, t.Name)

			// clear a colliding row owned by another backend, detaching its call records
			if err := tx.Model(&model.ToolCall{}).
				Where("tool_id IN (?)", tx.Model(&model.Tool{}).Select("id").Where("prefixed_name = ?", prefixedName)).
				Update("tool_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("prefixed_name = ?", prefixedName).Delete(&model.Tool{}).Error; err != nil {
				return err
			}

			row := &model.Tool{
				BackendID:    b.ID,
				Name:         t.Name,
				PrefixedName: prefixedName,
				Description:  t.Description,
				InputSchema:  []byte(t.InputSchema),
				RefreshedAt:  now,
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, errInternal("failed to persist tools for backend %s: %v", b.Name, err)
	}

	entries := make([]*RegistryEntry, len(rows))
	for i, row := range rows {
		entries[i] = &RegistryEntry{
			ToolID:       row.ID,
			BackendName:  b.Name,
			Name:         row.Name,
			PrefixedName: row.PrefixedName,
			Description:  row.Description,
			InputSchema:  json.RawMessage(row.InputSchema),
			RefreshedAt:  row.RefreshedAt,
		}
	}
	return entries, nil
}

// MountBackend resolves a direct-mount prefix to its backend. The mount only
// exists when the backend is enabled AND mount-enabled; anything else is a
// not-found outcome, so clients can tell "no such mount" from "nothing here".
func (m *Manager) MountBackend(prefix string) (*model.Backend, error) {
	var backends []model.Backend
	if err := m.db.Where("enabled = ?", true).Find(&backends).Error; err != nil {
		return nil, errInternal("failed to load backends: %v", err)
	}
	for i := range backends {
		if backends[i].EffectivePrefix() == prefix && backends[i].MountEnabled {
			return &backends[i], nil
		}
	}
	return nil, errNotFound("no mount named '%s'", prefix)
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
