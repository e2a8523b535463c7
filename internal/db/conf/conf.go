// Package conf provisions throwaway PostgreSQL databases for storage tests.
package conf

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Config holds test database connection and metadata.
type Config struct {
	Name    string
	DB      *sql.DB
	ConnStr string
	AdminDB *sql.DB
}

// NewTestConfig creates a database with a random name and applies the schema.
// Tests are skipped when PostgreSQL is not reachable. The returned cleanup
// function drops the database.
func NewTestConfig(t *testing.T) (*Config, func()) {
	t.Helper()

	const (
		testHost     = "localhost"
		testPort     = 5432
		testUser     = "postgres"
		testPassword = "postgres"
	)

	adminConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable",
		testHost, testPort, testUser, testPassword)

	adminDB, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}

	if err := adminDB.Ping(); err != nil {
		adminDB.Close()
		t.Skipf("Skipping test: PostgreSQL is not running or not accessible: %v", err)
		return nil, func() {}
	}

	dbName := fmt.Sprintf("test_db_%d", rand.Int31())
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		adminDB.Close()
		t.Fatalf("Failed to create test database: %v", err)
	}

	schemaSQL, err := os.ReadFile(findSchema())
	if err != nil {
		adminDB.Close()
		t.Fatalf("Failed to read schema.sql: %v", err)
	}

	dbConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		testHost, testPort, testUser, testPassword, dbName)

	db, err := sql.Open("postgres", dbConnStr)
	if err != nil {
		adminDB.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	for _, stmt := range strings.Split(string(schemaSQL), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			adminDB.Close()
			t.Fatalf("Failed to apply schema statement: %s\nError: %v", stmt, err)
		}
	}

	cfg := &Config{
		Name:    dbName,
		DB:      db,
		ConnStr: dbConnStr,
		AdminDB: adminDB,
	}

	cleanup := func() {
		db.Close()
		if _, err := adminDB.Exec(fmt.Sprintf("DROP DATABASE %s WITH (FORCE)", dbName)); err != nil {
			t.Logf("Warning: Failed to drop test database %s: %v", dbName, err)
		}
		adminDB.Close()
	}

	return cfg, cleanup
}

// findSchema locates scripts/schema.sql relative to the test's working
// directory.
func findSchema() string {
	path := filepath.Join("scripts", "schema.sql")
	for i := 0; i < 4; i++ {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		path = filepath.Join("..", path)
	}
	return filepath.Join("scripts", "schema.sql")
}
