package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forgearmory/armory/internal/model"
	"github.com/forgearmory/armory/pkg/testhelpers"
	"github.com/forgearmory/armory/pkg/types"
)

// fakeConn is an in-memory Conn so manager tests run without the network.
type fakeConn struct {
	mu      sync.Mutex
	state   ConnState
	timeout time.Duration

	tools   []ToolInfo
	openErr error
	listErr error
	callErr error
	result  *types.ToolInvokeResult

	called []string
}

func (c *fakeConn) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		c.state = StateErrored
		return c.openErr
	}
	c.state = StateReady
	return nil
}

func (c *fakeConn) ListTools(ctx context.Context) ([]ToolInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.tools, nil
}

func (c *fakeConn) CallTool(ctx context.Context, name string, args map[string]any) (*types.ToolInvokeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.called = append(c.called, name)
	if c.callErr != nil {
		return nil, c.callErr
	}
	if c.result != nil {
		return c.result, nil
	}
	return &types.ToolInvokeResult{Content: []map[string]any{{"type": "text", "text": "ok"}}}, nil
}

func (c *fakeConn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) Timeout() time.Duration {
	if c.timeout == 0 {
		return 30 * time.Second
	}
	return c.timeout
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

func (c *fakeConn) setTools(tools []ToolInfo) {
	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()
}

func (c *fakeConn) calledNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.called...)
}

// fakeDialer hands out one fakeConn per backend name.
type fakeDialer struct {
	mu    sync.Mutex
	conns map[string]*fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(map[string]*fakeConn)}
}

func (d *fakeDialer) conn(name string) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conns[name]
	if !ok {
		c = &fakeConn{state: StateDisconnected}
		d.conns[name] = c
	}
	return c
}

func (d *fakeDialer) dial(b *model.Backend, _ *zap.Logger) Conn {
	return d.conn(b.Name)
}

func newTestManager(t *testing.T, dialer *fakeDialer) *Manager {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	m, err := NewManager(&ManagerConfig{
		DB:     db,
		Dialer: dialer.dial,
	})
	require.NoError(t, err)
	return m
}

func TestAddBackend(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{
		{Name: "forecast", Description: "Get a weather forecast", InputSchema: json.RawMessage(`{"type":"object"}`)},
	})
	m := newTestManager(t, dialer)

	b, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx",
		URL:  "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)
	assert.True(t, b.Enabled)
	assert.Equal(t, model.TimeoutSecondsDefault, b.TimeoutSeconds)
	assert.Equal(t, "wx", b.EffectivePrefix())

	// the initial refresh registered the backend's tools under its prefix
	entry, ok := m.Registry().Resolve("wx__forecast")
	require.True(t, ok)
	assert.Equal(t, "wx", entry.BackendName)
	assert.Equal(t, "forecast", entry.Name)

	count, err := m.ToolCount(b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAddBackend_DuplicateNameFails(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	_, err = m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9002/mcp",
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	// the first registration is untouched
	b, err := m.Get("wx")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9001/mcp", b.URL)
	_, ok := m.Registry().Resolve("wx__forecast")
	assert.True(t, ok)
}

func TestAddBackend_PrefixConflictFails(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("weather").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "weather", URL: "http://127.0.0.1:9001/mcp", Prefix: "wx",
	})
	require.NoError(t, err)

	// a second backend must not claim the same effective prefix, whether
	// through an explicit prefix or through its own name
	_, err = m.Add(context.Background(), &types.CreateBackendInput{
		Name: "openweather", URL: "http://127.0.0.1:9002/mcp", Prefix: "wx",
	})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9002/mcp",
	})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	backends, err := m.List()
	require.NoError(t, err)
	assert.Len(t, backends, 1)
}

func TestAddBackend_InvalidInput(t *testing.T) {
	m := newTestManager(t, newFakeDialer())

	tests := []struct {
		name  string
		input types.CreateBackendInput
	}{
		{"empty name", types.CreateBackendInput{URL: "http://x/mcp"}},
		{"missing url", types.CreateBackendInput{Name: "wx"}},
		{"double underscore in name", types.CreateBackendInput{Name: "aws__ec2", URL: "http://x/mcp"}},
		{"trailing underscore", types.CreateBackendInput{Name: "wx_", URL: "http://x/mcp"}},
		{"bad characters", types.CreateBackendInput{Name: "w x!", URL: "http://x/mcp"}},
		{"double underscore in prefix", types.CreateBackendInput{Name: "wx", URL: "http://x/mcp", Prefix: "a__b"}},
		{"timeout too small", types.CreateBackendInput{Name: "wx", URL: "http://x/mcp", Timeout: 0.1}},
		{"timeout too large", types.CreateBackendInput{Name: "wx", URL: "http://x/mcp", Timeout: 301}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Add(context.Background(), &tt.input)
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestAddBackend_ConnectFailureStillCreates(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").openErr = errTransport("connection refused")
	m := newTestManager(t, dialer)

	b, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)
	assert.True(t, b.Enabled)
	assert.Equal(t, StateErrored, m.ConnState("wx"))
	assert.Equal(t, 0, m.Registry().Count())
}

func TestRefresh_ReplacesToolSetWholesale(t *testing.T) {
	dialer := newFakeDialer()
	conn := dialer.conn("wx")
	conn.setTools([]ToolInfo{
		{Name: "forecast", Description: "old description"},
		{Name: "alerts"},
	})
	m := newTestManager(t, dialer)

	b, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	// the backend's catalog changes: one tool dropped, one changed, one added
	conn.setTools([]ToolInfo{
		{Name: "forecast", Description: "new description"},
		{Name: "radar"},
	})

	names, err := m.Refresh(context.Background(), "wx")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"forecast", "radar"}, names)

	_, ok := m.Registry().Resolve("wx__alerts")
	assert.False(t, ok, "dropped tool must disappear")
	entry, ok := m.Registry().Resolve("wx__forecast")
	require.True(t, ok)
	assert.Equal(t, "new description", entry.Description)
	_, ok = m.Registry().Resolve("wx__radar")
	assert.True(t, ok)

	count, err := m.ToolCount(b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRefresh_DisabledBackendFails(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)
	_, err = m.Disable("wx")
	require.NoError(t, err)

	_, err = m.Refresh(context.Background(), "wx")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestRefresh_FailureKeepsPriorToolSet(t *testing.T) {
	dialer := newFakeDialer()
	conn := dialer.conn("wx")
	conn.setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	conn.mu.Lock()
	conn.listErr = errTimeout("tool discovery timed out")
	conn.mu.Unlock()

	_, err = m.Refresh(context.Background(), "wx")
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))

	// the previously registered set keeps serving
	_, ok := m.Registry().Resolve("wx__forecast")
	assert.True(t, ok)
}

func TestRemove_CascadesToolsAndDetachesCallRecords(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	b, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	_, err = m.CallTool(context.Background(), "wx__forecast", map[string]any{"city": "Berlin"}, nil)
	require.NoError(t, err)

	// flush the recorder so the call row exists before removal
	m.recorder.Close()

	require.NoError(t, m.Remove("wx"))

	_, err = m.Get("wx")
	assert.Equal(t, KindNotFound, KindOf(err))
	_, ok := m.Registry().Resolve("wx__forecast")
	assert.False(t, ok)

	var toolCount int64
	require.NoError(t, m.db.Model(&model.Tool{}).Where("backend_id = ?", b.ID).Count(&toolCount).Error)
	assert.Equal(t, int64(0), toolCount)

	// call history survives with the tool reference detached
	var calls []model.ToolCall
	require.NoError(t, m.db.Find(&calls).Error)
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].ToolID)
	assert.Equal(t, "wx", calls[0].BackendName)
	assert.Equal(t, "forecast", calls[0].ToolName)
}

func TestDisable_IsIdempotentAndReversible(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	b, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		disabled, err := m.Disable("wx")
		require.NoError(t, err)
		assert.False(t, disabled.Enabled)
	}
	assert.Equal(t, StateDisconnected, m.ConnState("wx"))
	_, ok := m.Registry().Resolve("wx__forecast")
	assert.False(t, ok, "tools of a disabled backend must not be served")

	// tool rows survive the disable
	count, err := m.ToolCount(b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	enabled, err := m.Enable(context.Background(), "wx")
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
	_, ok = m.Registry().Resolve("wx__forecast")
	assert.True(t, ok)
}

func TestMountBackend(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	b, err := m.MountBackend("wx")
	require.NoError(t, err)
	assert.Equal(t, "wx", b.Name)

	_, err = m.MountBackend("nope")
	assert.Equal(t, KindNotFound, KindOf(err))

	// a disabled backend's mount does not exist
	_, err = m.Disable("wx")
	require.NoError(t, err)
	_, err = m.MountBackend("wx")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestMountBackend_MountDisabled(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	mountEnabled := false
	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp", MountEnabled: &mountEnabled,
	})
	require.NoError(t, err)

	_, err = m.MountBackend("wx")
	assert.Equal(t, KindNotFound, KindOf(err))

	// the backend's tools still serve on the aggregated surface
	_, ok := m.Registry().Resolve("wx__forecast")
	assert.True(t, ok)
}

func TestUpdate_PrefixChangeReregistersTools(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	prefix := "weather"
	b, err := m.Update(context.Background(), "wx", &types.UpdateBackendInput{Prefix: &prefix})
	require.NoError(t, err)
	assert.Equal(t, "weather", b.EffectivePrefix())

	_, ok := m.Registry().Resolve("wx__forecast")
	assert.False(t, ok)
	entry, ok := m.Registry().Resolve("weather__forecast")
	require.True(t, ok)
	assert.Equal(t, "wx", entry.BackendName)
}

func TestUpdate_PrefixConflictFails(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	dialer.conn("search").setTools([]ToolInfo{{Name: "query"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)
	_, err = m.Add(context.Background(), &types.CreateBackendInput{
		Name: "search", URL: "http://127.0.0.1:9002/mcp",
	})
	require.NoError(t, err)

	prefix := "wx"
	_, err = m.Update(context.Background(), "search", &types.UpdateBackendInput{Prefix: &prefix})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	// the rejected update left both serving surfaces intact
	b, err := m.Get("search")
	require.NoError(t, err)
	assert.Equal(t, "search", b.EffectivePrefix())
	_, ok := m.Registry().Resolve("search__query")
	assert.True(t, ok)
	_, ok = m.Registry().Resolve("wx__forecast")
	assert.True(t, ok)
}

func TestUpdate_DisableTearsDownServing(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	enabled := false
	b, err := m.Update(context.Background(), "wx", &types.UpdateBackendInput{Enabled: &enabled})
	require.NoError(t, err)
	assert.False(t, b.Enabled)
	assert.Equal(t, StateDisconnected, m.ConnState("wx"))
	assert.Equal(t, 0, m.Registry().Count())
}

func TestCallTool_RoutesByPrefix(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	dialer.conn("search").setTools([]ToolInfo{{Name: "query"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)
	_, err = m.Add(context.Background(), &types.CreateBackendInput{
		Name: "search", URL: "http://127.0.0.1:9002/mcp",
	})
	require.NoError(t, err)

	_, err = m.CallTool(context.Background(), "wx__forecast", map[string]any{"city": "Berlin"}, nil)
	require.NoError(t, err)
	_, err = m.CallTool(context.Background(), "search__query", map[string]any{"q": "golang"}, nil)
	require.NoError(t, err)

	// each backend receives the tool's original, unprefixed name
	assert.Equal(t, []string{"forecast"}, dialer.conn("wx").calledNames())
	assert.Equal(t, []string{"query"}, dialer.conn("search").calledNames())
}

func TestCallTool_UnknownToolIsNotRecorded(t *testing.T) {
	dialer := newFakeDialer()
	m := newTestManager(t, dialer)

	_, err := m.CallTool(context.Background(), "wx__forecast", nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	m.recorder.Close()
	var count int64
	require.NoError(t, m.db.Model(&model.ToolCall{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "an unresolvable call never reaches a backend and is not recorded")
}

func TestCallTool_TimeoutRecordedWithBoundLatency(t *testing.T) {
	dialer := newFakeDialer()
	conn := dialer.conn("wx")
	conn.setTools([]ToolInfo{{Name: "forecast"}})
	conn.timeout = 5 * time.Second
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp", Timeout: 5,
	})
	require.NoError(t, err)

	conn.mu.Lock()
	conn.callErr = errTimeout("call to tool forecast timed out after 5s")
	conn.mu.Unlock()

	_, err = m.CallTool(context.Background(), "wx__forecast", nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))

	m.recorder.Close()
	var calls []model.ToolCall
	require.NoError(t, m.db.Find(&calls).Error)
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Success)
	assert.Equal(t, int64(5000), calls[0].LatencyMs)
}

func TestCallTool_BackendErrorRecordedVerbatim(t *testing.T) {
	dialer := newFakeDialer()
	conn := dialer.conn("wx")
	conn.setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	conn.mu.Lock()
	conn.callErr = errBackend("unknown city: Atlantis")
	conn.mu.Unlock()

	_, err = m.CallTool(context.Background(), "wx__forecast", map[string]any{"city": "Atlantis"}, nil)
	require.Error(t, err)
	assert.Equal(t, KindBackendError, KindOf(err))

	m.recorder.Close()
	var calls []model.ToolCall
	require.NoError(t, m.db.Find(&calls).Error)
	require.Len(t, calls, 1)
	assert.Equal(t, "unknown city: Atlantis", calls[0].ErrorMessage)
}

func TestCallTool_RequestContextIsRecorded(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	rc := &RequestContext{
		ClientIP:  "10.0.0.7",
		RequestID: "req-1",
		SessionID: "sess-1",
		Caller:    "test-agent",
	}
	_, err = m.CallTool(context.Background(), "wx__forecast", nil, rc)
	require.NoError(t, err)

	m.recorder.Close()
	var calls []model.ToolCall
	require.NoError(t, m.db.Find(&calls).Error)
	require.Len(t, calls, 1)
	assert.Equal(t, "10.0.0.7", calls[0].ClientIP)
	assert.Equal(t, "req-1", calls[0].RequestID)
	assert.Equal(t, "sess-1", calls[0].SessionID)
	assert.Equal(t, "test-agent", calls[0].Caller)
}

func TestCallToolOnMount(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	_, err = m.CallToolOnMount(context.Background(), "wx", "forecast", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"forecast"}, dialer.conn("wx").calledNames())

	_, err = m.CallToolOnMount(context.Background(), "nope", "forecast", nil, nil)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestConnectAll(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	dialer.conn("search").setTools([]ToolInfo{{Name: "query"}})
	m := newTestManager(t, dialer)

	require.NoError(t, m.db.Create(&model.Backend{Name: "wx", URL: "http://x/mcp", Enabled: true, TimeoutSeconds: 30, MountEnabled: true}).Error)
	require.NoError(t, m.db.Create(&model.Backend{Name: "search", URL: "http://y/mcp", Enabled: true, TimeoutSeconds: 30, MountEnabled: true}).Error)
	idle := &model.Backend{Name: "idle", URL: "http://z/mcp", Enabled: true, TimeoutSeconds: 30, MountEnabled: true}
	require.NoError(t, m.db.Create(idle).Error)
	require.NoError(t, m.db.Model(idle).Update("enabled", false).Error)

	require.NoError(t, m.ConnectAll(context.Background()))

	assert.Equal(t, StateReady, m.ConnState("wx"))
	assert.Equal(t, StateReady, m.ConnState("search"))
	assert.Equal(t, StateDisconnected, m.ConnState("idle"))
	assert.Equal(t, 2, m.Registry().Count())
}

func TestShutdown_FlushesRecorderAndClosesConns(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	_, err = m.CallTool(context.Background(), "wx__forecast", nil, nil)
	require.NoError(t, err)

	m.Shutdown()

	assert.Equal(t, StateDisconnected, dialer.conn("wx").State())
	var count int64
	require.NoError(t, m.db.Model(&model.ToolCall{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCallTool_AfterShutdownFailsWithoutPanic(t *testing.T) {
	dialer := newFakeDialer()
	dialer.conn("wx").setTools([]ToolInfo{{Name: "forecast"}})
	m := newTestManager(t, dialer)

	_, err := m.Add(context.Background(), &types.CreateBackendInput{
		Name: "wx", URL: "http://127.0.0.1:9001/mcp",
	})
	require.NoError(t, err)

	m.Shutdown()

	// dispatch is lock-free against management state, so a request may
	// still arrive after shutdown; it must fail cleanly, not crash the
	// serving goroutine
	assert.NotPanics(t, func() {
		_, err = m.CallTool(context.Background(), "wx__forecast", nil, nil)
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTransportError))
}
