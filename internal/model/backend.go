// Package model defines the database entities of the Forge Armory gateway.
package model

import (
	"gorm.io/gorm"
)

const (
	// TimeoutSecondsDefault is the per-backend timeout applied when none is configured.
	TimeoutSecondsDefault = 30.0

	// TimeoutSecondsMin and TimeoutSecondsMax bound the configurable per-backend timeout.
	TimeoutSecondsMin = 1.0
	TimeoutSecondsMax = 300.0
)

// Backend represents an upstream MCP server configured in the gateway.
type Backend struct {
	gorm.Model

	// Name is the stable, unique identifier of the backend.
	Name string `json:"name" gorm:"uniqueIndex;not null"`

	// URL is the streamable HTTP endpoint of the upstream MCP server.
	URL string `json:"url" gorm:"not null"`

	// Enabled controls whether the backend participates in the serving surfaces.
	// A disabled backend keeps its configuration and call history but serves no tools.
	Enabled bool `json:"enabled" gorm:"default:true"`

	// TimeoutSeconds bounds every network operation against this backend.
	TimeoutSeconds float64 `json:"timeout" gorm:"default:30"`

	// Prefix optionally overrides the namespace under which the backend's tools
	// appear on the aggregated surface. When empty, the backend name is used.
	Prefix string `json:"prefix"`

	// MountEnabled controls whether the backend's tools are also reachable
	// unprefixed on the direct mount path keyed by the effective prefix.
	MountEnabled bool `json:"mount_enabled" gorm:"default:true"`
}

// EffectivePrefix returns the namespace used to compose prefixed tool names.
func (b *Backend) EffectivePrefix() string {
	if b.Prefix != "" {
		return b.Prefix
	}
	return b.Name
}
