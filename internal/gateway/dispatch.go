package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/forgearmory/armory/internal/model"
	"github.com/forgearmory/armory/internal/telemetry"
	"github.com/forgearmory/armory/pkg/types"
)

// CallTool routes an aggregated-surface tool call: the prefixed name is
// resolved through the registry, the call is dispatched to the backend's live
// connection and the outcome is recorded before this function returns.
//
// An unresolvable name fails with not_found and never reaches a connection
// (and is not recorded). Dispatch takes no management lock: it reads a
// consistent registry snapshot and may race an in-flight replace, in which
// case "backend not connected" is a retryable outcome for the caller.
func (m *Manager) CallTool(ctx context.Context, prefixedName string, args map[string]any, rc *RequestContext) (*types.ToolInvokeResult, error) {
	entry, ok := m.registry.Resolve(prefixedName)
	if !ok {
		return nil, errNotFound("tool '%s' not found", prefixedName)
	}

	conn := m.getConn(entry.BackendName)
	if conn == nil || conn.State() != StateReady {
		err := errTransport("backend %s is not connected", entry.BackendName)
		m.record(ctx, entry, conn, args, 0, err, rc)
		return nil, err
	}

	started := time.Now()
	result, err := conn.CallTool(ctx, entry.Name, args)
	latency := time.Since(started)

	m.record(ctx, entry, conn, args, latency, err, rc)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CallToolOnMount routes a direct-mount tool call: the unprefixed name is
// resolved against the mount's backend by composing the prefixed form.
func (m *Manager) CallToolOnMount(ctx context.Context, prefix, name string, args map[string]any, rc *RequestContext) (*types.ToolInvokeResult, error) {
	b, err := m.MountBackend(prefix)
	if err != nil {
		return nil, err
	}
	return m.CallTool(ctx, mergePrefixedName(b.EffectivePrefix(), name), args, rc)
}

// ListMountedTools returns the registry entries for a direct mount. The
// entries carry the tools' original names for unprefixed serving.
func (m *Manager) ListMountedTools(prefix string) ([]*RegistryEntry, error) {
	b, err := m.MountBackend(prefix)
	if err != nil {
		return nil, err
	}
	return m.registry.ListForBackend(b.Name), nil
}

// record hands the outcome of one dispatched call to the recorder and the
// metrics pipeline. It never blocks the response path.
func (m *Manager) record(ctx context.Context, entry *RegistryEntry, conn Conn, args map[string]any, latency time.Duration, callErr error, rc *RequestContext) {
	outcome := telemetry.ToolCallOutcomeSuccess
	errMsg := ""
	if callErr != nil {
		errMsg = callErr.Error()
		outcome = telemetry.ToolCallOutcomeError
		if IsKind(callErr, KindTimeout) {
			outcome = telemetry.ToolCallOutcomeTimeout
			// a timed-out call is recorded with a latency equal to the bound
			if conn != nil {
				latency = conn.Timeout()
			}
		}
	}

	m.metrics.RecordToolCall(ctx, entry.BackendName, entry.Name, outcome, latency)

	// arguments are recorded on a best-effort basis
	argsJSON, _ := json.Marshal(args)

	toolID := entry.ToolID
	call := &model.ToolCall{
		ToolID:       &toolID,
		BackendName:  entry.BackendName,
		ToolName:     entry.Name,
		Arguments:    argsJSON,
		Success:      callErr == nil,
		ErrorMessage: errMsg,
		LatencyMs:    latency.Milliseconds(),
		CalledAt:     time.Now().UTC(),
	}
	if rc != nil {
		call.ClientIP = rc.ClientIP
		call.RequestID = rc.RequestID
		call.SessionID = rc.SessionID
		call.Caller = rc.Caller
	}
	m.recorder.Record(call)
}
