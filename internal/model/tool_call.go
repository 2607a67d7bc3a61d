package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ToolCall is an append-only record of one tool invocation's outcome.
// Rows are never mutated after creation. The Tool reference is detached
// ("set null") rather than cascaded so history survives tool deletion.
type ToolCall struct {
	gorm.Model

	// ToolID points at the Tool row in effect at call time, if it still exists.
	ToolID *uint `json:"tool_id" gorm:"index"`
	Tool   *Tool `json:"-" gorm:"foreignKey:ToolID;references:ID;constraint:OnDelete:SET NULL"`

	BackendName string `json:"backend_name" gorm:"index;not null"`

	// ToolName is the tool's original (unprefixed) name.
	ToolName string `json:"tool_name" gorm:"not null"`

	Arguments datatypes.JSON `json:"arguments" gorm:"type:jsonb"`

	Success      bool   `json:"success" gorm:"not null"`
	ErrorMessage string `json:"error_message"`
	LatencyMs    int64  `json:"latency_ms" gorm:"not null"`

	CalledAt time.Time `json:"called_at" gorm:"index;not null"`

	// Request context: where the call originated from.
	ClientIP  string `json:"client_ip"`
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
	Caller    string `json:"caller"`
}
