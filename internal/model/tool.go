package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tool is a cached capability reported by a backend.
// Tool rows only exist for backends that have been refreshed successfully
// at least once and are replaced wholesale on every refresh.
type Tool struct {
	gorm.Model

	// Name is the tool's original name as reported by the backend.
	// It is unique only within its backend.
	Name string `json:"name" gorm:"not null"`

	// PrefixedName is `{effective_prefix}__{name}`, unique across the registry.
	PrefixedName string `json:"prefixed_name" gorm:"uniqueIndex;not null"`

	Description string `json:"description"`

	// InputSchema is the backend-defined JSON schema for the tool's arguments.
	InputSchema datatypes.JSON `json:"input_schema" gorm:"type:jsonb"`

	// RefreshedAt records when this definition was last fetched from the backend.
	RefreshedAt time.Time `json:"refreshed_at" gorm:"not null"`

	// BackendID is the owning backend. Deleting the backend cascades to its tools.
	BackendID uint    `json:"-" gorm:"index;not null"`
	Backend   Backend `json:"-" gorm:"foreignKey:BackendID;references:ID;constraint:OnDelete:CASCADE"`
}
