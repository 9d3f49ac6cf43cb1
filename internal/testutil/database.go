// Package testutil provides shared test fixtures for dispatch packages.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/storage"
)

// TestDB wraps an in-memory store that is closed when the test ends.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database, optionally seeded with
// tickets.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.NewTicketBuilder().WithSampleCorpus().Build())
func SetupTestDB(t *testing.T, tickets []model.TicketRecord) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t}
	if len(tickets) > 0 {
		db.MustSeed(tickets)
	}
	return db
}

// MustSeed stores tickets or fails the test.
func (db *TestDB) MustSeed(tickets []model.TicketRecord) {
	db.t.Helper()
	if _, err := db.Storage.SaveTickets(context.Background(), tickets, "testutil"); err != nil {
		db.t.Fatalf("failed to seed tickets: %v", err)
	}
}
