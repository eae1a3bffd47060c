package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"

	"meeting-scheduler-api/internal/store/postgres"
	"meeting-scheduler-api/internal/store/storetest"
)

func setup(t *testing.T) *postgres.Store {
	t.Helper()
	_ = godotenv.Load("../../../.env")
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := postgres.Open(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, setup(t))
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setup(t)
	// Open already migrated; a second run must be a no-op
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}
