// Package testhelpers provides shared helpers for unit tests.
package testhelpers

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/forgearmory/armory/internal/model"
)

// CreateTestDB creates an in-memory SQLite database with all tables migrated.
func CreateTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	if err := db.AutoMigrate(&model.Backend{}, &model.Tool{}, &model.ToolCall{}); err != nil {
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}
	return db, nil
}

// SetupTestDB creates a test database and fails the test on error.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := CreateTestDB()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	return db
}

// AssertNoError fails the test if err is non-nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}

// AssertEqual fails the test if expected != actual.
func AssertEqual(t *testing.T, expected, actual any) {
	t.Helper()
	if expected != actual {
		t.Errorf("expected %v, got %v", expected, actual)
	}
}

// AssertNotNil fails the test if v is nil.
func AssertNotNil(t *testing.T, v any) {
	t.Helper()
	if v == nil {
		t.Fatal("expected a non-nil value")
	}
}

// AssertTrue fails the test with msg if cond is false.
func AssertTrue(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Error(msg)
	}
}

// CommandAnnotationTest describes one expected cobra command annotation.
type CommandAnnotationTest struct {
	Key      string
	Expected string
}

// TestCommandAnnotations checks that a command carries the expected annotations.
func TestCommandAnnotations(t *testing.T, annotations map[string]string, tests []CommandAnnotationTest) {
	t.Helper()
	for _, tt := range tests {
		if got := annotations[tt.Key]; got != tt.Expected {
			t.Errorf("annotation %q: expected %q, got %q", tt.Key, tt.Expected, got)
		}
	}
}
