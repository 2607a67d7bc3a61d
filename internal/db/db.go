// Package db manages the gateway's database connection.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteFileDefault is the database file created when no DSN is supplied.
const SQLiteFileDefault = "armory.db"

// NewDBConnection opens a database connection for the given DSN.
// A postgres:// DSN selects Postgres; anything else (including an empty DSN,
// which falls back to a local file) selects SQLite.
func NewDBConnection(dsn string) (*gorm.DB, error) {
	gormConf := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		conn, err := gorm.Open(postgres.Open(dsn), gormConf)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres database: %w", err)
		}
		return conn, nil
	}

	if dsn == "" {
		dsn = SQLiteFileDefault
	}
	conn, err := gorm.Open(sqlite.Open(dsn), gormConf)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", dsn, err)
	}

	// SQLite only supports a single writer
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return conn, nil
}
