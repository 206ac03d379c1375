// Package tests holds DB-backed integration tests. They skip when DATABASE_URL is unset.
package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/albocarride/server/internal/db"
)

// OpenTestDB opens DATABASE_URL and applies migrations, or skips the test.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	database, err := db.Open(context.Background(), url, db.DefaultPool)
	if err != nil {
		t.Fatalf("database open must succeed; check DATABASE_URL and that test DB exists: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrations must run successfully: %v", err)
	}
	return database
}

// TruncateTables truncates OTP and account tables for a clean test state.
func TruncateTables(ctx context.Context, database *sql.DB) error {
	_, err := database.ExecContext(ctx, "TRUNCATE TABLE otp_verifications, drivers, customers, profiles CASCADE")
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
