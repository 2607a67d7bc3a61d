// Package types defines the data transfer objects shared between the
// Forge Armory server, its API client and the CLI.
package types

import "time"

// CreateBackendInput is the request body for registering a new backend.
// It is also the shape of one entry in the declarative config file.
type CreateBackendInput struct {
	// Name (mandatory) is the unique name of the backend within the gateway.
	Name string `json:"name" yaml:"name"`

	// URL (mandatory) is the streamable HTTP endpoint of the upstream MCP server.
	URL string `json:"url" yaml:"url"`

	// Enabled controls whether the gateway connects to the backend and serves
	// its tools. Defaults to true.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Timeout bounds every network operation against the backend, in seconds.
	// Defaults to 30, valid range 1..300.
	Timeout float64 `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Prefix optionally overrides the tool-name namespace. Defaults to Name.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// MountEnabled controls whether the backend also gets a direct, unprefixed
	// mount at /mcp/{effective_prefix}. Defaults to true.
	MountEnabled *bool `json:"mount_enabled,omitempty" yaml:"mount_enabled,omitempty"`
}

// UpdateBackendInput is the request body for updating a backend.
// Only non-nil fields are applied.
type UpdateBackendInput struct {
	URL          *string  `json:"url,omitempty"`
	Enabled      *bool    `json:"enabled,omitempty"`
	Timeout      *float64 `json:"timeout,omitempty"`
	Prefix       *string  `json:"prefix,omitempty"`
	MountEnabled *bool    `json:"mount_enabled,omitempty"`
}

// Backend is the API representation of a configured backend.
type Backend struct {
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Enabled         bool      `json:"enabled"`
	Timeout         float64   `json:"timeout"`
	Prefix          string    `json:"prefix,omitempty"`
	MountEnabled    bool      `json:"mount_enabled"`
	EffectivePrefix string    `json:"effective_prefix"`
	ConnectionState string    `json:"connection_state"`
	ToolCount       int       `json:"tool_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RefreshResult is returned after re-querying a backend's tool list.
type RefreshResult struct {
	BackendName string   `json:"backend_name"`
	ToolCount   int      `json:"tool_count"`
	Tools       []string `json:"tools"`
}

// ErrorResponse is the error envelope returned by the management API.
type ErrorResponse struct {
	// Error is the stable machine-readable error kind.
	Error string `json:"error"`
	// Detail is a human-readable description of the failure.
	Detail string `json:"detail,omitempty"`
}
