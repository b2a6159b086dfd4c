// Package testutil provides shared test fixtures: an in-memory store and
// sample invoice uploads.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/invoice-readiness/internal/model"
	"github.com/Veraticus/invoice-readiness/internal/storage"
)

// TestDB represents a test database with the uploads seeded into it.
type TestDB struct {
	Storage *storage.Storage
	t       *testing.T
	Uploads map[string]*model.Upload
}

// SetupTestDB creates a new in-memory test database and seeds the given
// uploads. It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.CleanUAEUpload(), testutil.MessyUpload())
//	id := db.MustUploadID(testutil.FixtureCleanUAE)
func SetupTestDB(t *testing.T, uploads ...*model.Upload) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	db := &TestDB{
		Storage: store,
		Uploads: make(map[string]*model.Upload, len(uploads)),
		t:       t,
	}
	for _, upload := range uploads {
		db.Seed(upload)
	}
	return db
}

// Seed stores an upload and indexes it by its ERP label.
func (db *TestDB) Seed(upload *model.Upload) string {
	db.t.Helper()
	if err := db.Storage.SaveUpload(context.Background(), upload); err != nil {
		db.t.Fatalf("failed to seed upload %q: %v", upload.ERP, err)
	}
	db.Uploads[upload.ERP] = upload
	return upload.ID
}

// MustUploadID returns the ID of a seeded fixture or fails the test.
func (db *TestDB) MustUploadID(fixture string) string {
	db.t.Helper()
	upload, ok := db.Uploads[fixture]
	if !ok {
		db.t.Fatalf("fixture %q was not seeded", fixture)
	}
	return upload.ID
}
