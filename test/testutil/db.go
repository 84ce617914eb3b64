package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/studymate/internal/config"
	"github.com/xxxsen/studymate/internal/db"
)

// OpenTestDB connects to the postgres instance named by TEST_DB_HOST and applies
// migrations. Tests are skipped when the variable is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "studymate",
		Password: "studymate_pass",
		DBName:   "studymate_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_, _ = conn.Exec("DELETE FROM document_chunks")
		_, _ = conn.Exec("DELETE FROM documents")
		_, _ = conn.Exec("DELETE FROM quizzes")
		_, _ = conn.Exec("DELETE FROM embedding_cache")
		_ = conn.Close()
	}
}
