// Package migrations keeps the database schema in sync with the models.
package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/forgearmory/armory/internal/model"
)

// Migrate applies the schema for all gateway entities.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Backend{},
		&model.Tool{},
		&model.ToolCall{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}
