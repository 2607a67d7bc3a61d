package types

import (
	"encoding/json"
	"time"
)

// Tool is the API representation of a tool known to the registry.
type Tool struct {
	BackendName string `json:"backend_name"`

	// Name is the tool's original name as reported by its backend.
	Name string `json:"name"`

	// PrefixedName is the globally-addressable name on the aggregated surface.
	PrefixedName string `json:"prefixed_name"`

	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	RefreshedAt time.Time       `json:"refreshed_at"`
}

// ToolInvokeResult is the result of a tool call, shaped for the end client.
type ToolInvokeResult struct {
	Meta    map[string]any `json:"_meta,omitempty"`
	IsError bool           `json:"isError,omitempty"`

	Content           []map[string]any `json:"content"`
	StructuredContent any              `json:"structuredContent,omitempty"`
}
