package types

import (
	"encoding/json"
	"time"
)

// ToolCall is the API representation of one recorded tool invocation.
type ToolCall struct {
	ID           uint            `json:"id"`
	BackendName  string          `json:"backend_name"`
	ToolName     string          `json:"tool_name"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
	Success      bool            `json:"success"`
	ErrorMessage string          `json:"error_message,omitempty"`
	LatencyMs    int64           `json:"latency_ms"`
	CalledAt     time.Time       `json:"called_at"`

	ClientIP  string `json:"client_ip,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Caller    string `json:"caller,omitempty"`
}

// ToolCallList is a paginated listing of tool call records.
type ToolCallList struct {
	Calls []ToolCall `json:"calls"`
	Total int64      `json:"total"`
}

// CallStats aggregates call outcomes over an optional backend/tool/time filter.
type CallStats struct {
	TotalCalls   int64   `json:"total_calls"`
	SuccessCount int64   `json:"success_count"`
	ErrorCount   int64   `json:"error_count"`
	SuccessRate  float64 `json:"success_rate"`

	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MinLatencyMs int64   `json:"min_latency_ms"`
	MaxLatencyMs int64   `json:"max_latency_ms"`

	P50LatencyMs int64 `json:"p50_latency_ms"`
	P95LatencyMs int64 `json:"p95_latency_ms"`
	P99LatencyMs int64 `json:"p99_latency_ms"`
}
