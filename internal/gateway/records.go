package gateway

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/forgearmory/armory/internal/model"
	"github.com/forgearmory/armory/pkg/types"
)

// CallFilter narrows call-record queries. Zero values mean "no filter".
// ToolName may be given in the prefixed form (eg- `wx__forecast`) instead of
// setting BackendName and ToolName separately.
type CallFilter struct {
	BackendName string
	ToolName    string
	Success     *bool
	Since       time.Time

	Limit  int
	Offset int
}

const callListLimitDefault = 100

func (f *CallFilter) apply(q *gorm.DB) *gorm.DB {
	if f == nil {
		return q
	}
	if f.BackendName != "" {
		q = q.Where("backend_name = ?", f.BackendName)
	}
	if f.ToolName != "" {
		q = q.Where("tool_name = ?", f.ToolName)
	}
	if f.Success != nil {
		q = q.Where("success = ?", *f.Success)
	}
	if !f.Since.IsZero() {
		q = q.Where("called_at >= ?", f.Since)
	}
	return q
}

// normalizeCallFilter resolves a prefixed tool filter into its backend and
// tool parts. A live registry entry wins, since a custom prefix may differ
// from the backend name; otherwise the text before the first __ is taken as
// the backend name, which also covers records of since-removed backends.
func (m *Manager) normalizeCallFilter(f *CallFilter) {
	if f == nil || f.ToolName == "" || f.BackendName != "" {
		return
	}
	prefix, tool, ok := splitPrefixedName(f.ToolName)
	if !ok {
		return
	}
	if entry, found := m.registry.Resolve(f.ToolName); found {
		f.BackendName = entry.BackendName
		f.ToolName = entry.Name
		return
	}
	f.BackendName = prefix
	f.ToolName = tool
}

// ListToolCalls returns call records matching the filter, newest first.
func (m *Manager) ListToolCalls(f *CallFilter) (*types.ToolCallList, error) {
	m.normalizeCallFilter(f)
	limit := callListLimitDefault
	offset := 0
	if f != nil {
		if f.Limit > 0 {
			limit = f.Limit
		}
		offset = f.Offset
	}

	var total int64
	if err := f.apply(m.db.Model(&model.ToolCall{})).Count(&total).Error; err != nil {
		return nil, errInternal("failed to count call records: %v", err)
	}

	var rows []model.ToolCall
	err := f.apply(m.db.Model(&model.ToolCall{})).
		Order("called_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, errInternal("failed to list call records: %v", err)
	}

	calls := make([]types.ToolCall, len(rows))
	for i, row := range rows {
		calls[i] = types.ToolCall{
			ID:           row.ID,
			BackendName:  row.BackendName,
			ToolName:     row.ToolName,
			Arguments:    json.RawMessage(row.Arguments),
			Success:      row.Success,
			ErrorMessage: row.ErrorMessage,
			LatencyMs:    row.LatencyMs,
			CalledAt:     row.CalledAt,
			ClientIP:     row.ClientIP,
			RequestID:    row.RequestID,
			SessionID:    row.SessionID,
			Caller:       row.Caller,
		}
	}
	return &types.ToolCallList{Calls: calls, Total: total}, nil
}

// CallStats aggregates outcomes and latencies over the filtered records,
// including percentile latencies. Aggregation happens here, downstream of the
// request path; the recorder itself only ever appends.
func (m *Manager) CallStats(f *CallFilter) (*types.CallStats, error) {
	m.normalizeCallFilter(f)
	type row struct {
		Success   bool
		LatencyMs int64
	}
	var rows []row
	err := f.apply(m.db.Model(&model.ToolCall{})).
		Select("success", "latency_ms").
		Find(&rows).Error
	if err != nil {
		return nil, errInternal("failed to load call records: %v", err)
	}

	stats := &types.CallStats{}
	if len(rows) == 0 {
		return stats, nil
	}

	latencies := make([]int64, 0, len(rows))
	var sum int64
	for _, r := range rows {
		if r.Success {
			stats.SuccessCount++
		} else {
			stats.ErrorCount++
		}
		latencies = append(latencies, r.LatencyMs)
		sum += r.LatencyMs
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	stats.TotalCalls = int64(len(rows))
	stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalCalls)
	stats.AvgLatencyMs = float64(sum) / float64(stats.TotalCalls)
	stats.MinLatencyMs = latencies[0]
	stats.MaxLatencyMs = latencies[len(latencies)-1]
	stats.P50LatencyMs = percentile(latencies, 50)
	stats.P95LatencyMs = percentile(latencies, 95)
	stats.P99LatencyMs = percentile(latencies, 99)
	return stats, nil
}

// percentile computes the nearest-rank percentile of sorted values.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// ListToolRecords returns the persisted tool rows, optionally scoped to one
// backend. Unlike the registry views, this includes tools of disabled
// backends, which still exist in storage.
func (m *Manager) ListToolRecords(backendName string) ([]types.Tool, error) {
	q := m.db.Model(&model.Tool{}).Order("prefixed_name")
	if backendName != "" {
		b, err := m.Get(backendName)
		if err != nil {
			return nil, err
		}
		q = q.Where("backend_id = ?", b.ID)
	}

	var rows []model.Tool
	if err := q.Find(&rows).Error; err != nil {
		return nil, errInternal("failed to list tools: %v", err)
	}

	// resolve owning backend names in one pass
	backendNames := make(map[uint]string)
	backends, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, b := range backends {
		backendNames[b.ID] = b.Name
	}

	tools := make([]types.Tool, len(rows))
	for i, row := range rows {
		tools[i] = types.Tool{
			BackendName:  backendNames[row.BackendID],
			Name:         row.Name,
			PrefixedName: row.PrefixedName,
			Description:  row.Description,
			InputSchema:  json.RawMessage(row.InputSchema),
			RefreshedAt:  row.RefreshedAt,
		}
	}
	return tools, nil
}
