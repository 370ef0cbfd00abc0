package db

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewDB_CreatesConnection(t *testing.T) {
	tmpFile := createTempDB(t)
	defer os.Remove(tmpFile)

	database, err := NewDB(tmpFile, nil)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()

	if database.db == nil {
		t.Error("expected db connection to be non-nil")
	}
}

func TestNewDB_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "beacon.db")

	database, err := NewDB(path, nil)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("expected parent directory to exist: %v", err)
	}
}

func TestMigration_CreatesAllTables(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	tables := []string{"conversations", "messages", "feedback"}
	for _, table := range tables {
		exists, err := database.tableExists(table)
		if err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s should exist after migration", table)
		}
	}
}

func TestMigration_Idempotent(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	if err := database.Migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestMigration_DetectsExistingSchema(t *testing.T) {
	tmpFile := createTempDB(t)
	defer os.Remove(tmpFile)

	core, logs := observer.New(zap.DebugLevel)
	database, err := NewDB(tmpFile, zap.New(core))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if n := logs.FilterMessage("Creating database schema").Len(); n != 1 {
		t.Errorf("expected fresh schema to be created once, got %d", n)
	}

	if err := database.Migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
	if n := logs.FilterMessage("Upgrading existing schema").Len(); n != 1 {
		t.Errorf("expected second run to upgrade in place, got %d", n)
	}
}

func TestMigration_AddsMissingColumn(t *testing.T) {
	tmpFile := createTempDB(t)
	defer os.Remove(tmpFile)

	database, err := NewDB(tmpFile, nil)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()

	// Schema as written before titles could be renamed
	_, err = database.db.Exec(`
		CREATE TABLE conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			is_pinned INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("failed to create legacy table: %v", err)
	}

	if err := database.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	if _, err := database.db.Exec(`UPDATE conversations SET is_renamed = 1`); err != nil {
		t.Errorf("expected is_renamed column after migration: %v", err)
	}
}

func TestSemaphoreExclusiveAccess(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	var maxConcurrent int32
	var currentConcurrent int32
	var wg sync.WaitGroup
	numGoroutines := 10

	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := database.WithLock(func() error {
				current := atomic.AddInt32(&currentConcurrent, 1)

				for {
					max := atomic.LoadInt32(&maxConcurrent)
					if current <= max {
						break
					}
					if atomic.CompareAndSwapInt32(&maxConcurrent, max, current) {
						break
					}
				}

				time.Sleep(10 * time.Millisecond)

				atomic.AddInt32(&currentConcurrent, -1)
				return nil
			})
			if err != nil {
				t.Errorf("goroutine %d failed: %v", id, err)
			}
		}(i)
	}

	wg.Wait()

	if maxConcurrent != 1 {
		t.Errorf("expected max concurrent access to be 1, got %d", maxConcurrent)
	}
}

func TestDB_Close(t *testing.T) {
	tmpFile := createTempDB(t)
	defer os.Remove(tmpFile)

	database, err := NewDB(tmpFile, nil)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if err := database.Close(); err != nil {
		t.Errorf("failed to close database: %v", err)
	}
}

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	tmpFile := createTempDB(t)
	database, err := NewDB(tmpFile, nil)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	cleanup := func() {
		database.Close()
		os.Remove(tmpFile)
	}

	return database, cleanup
}

// Helper function to create a temporary database file
func createTempDB(t *testing.T) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}
