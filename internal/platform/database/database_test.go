package database

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantErr  bool
	}{
		{"valid", "postgres://learn:pass@db:5432/learn", "db", false},
		{"keyword form", "host=localhost user=learn dbname=learn", "localhost", false},
		{"empty", "", "", true},
		{"invalid", "not-a-url", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg.ConnConfig.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", cfg.ConnConfig.Host, tt.wantHost)
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("learn"),
		postgres.WithUsername("learn"),
		postgres.WithPassword("learn"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	db, err := New(ctx, dsn, 2, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	schema := []string{
		`CREATE TABLE IF NOT EXISTS modules (id TEXT PRIMARY KEY)`,
		`CREATE INDEX IF NOT EXISTS modules_id ON modules (id)`,
	}
	if err := db.Migrate(ctx, schema...); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Applying the same schema again is a no-op.
	if err := db.Migrate(ctx, schema...); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	// A failing statement rolls back the ones before it.
	err = db.Migrate(ctx,
		`CREATE TABLE lessons (id TEXT PRIMARY KEY)`,
		`CREATE TABLE broken (`,
	)
	if err == nil {
		t.Fatal("Migrate() should fail on invalid SQL")
	}
	var exists bool
	if err := db.Pool.QueryRow(ctx, `SELECT to_regclass('lessons') IS NOT NULL`).Scan(&exists); err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("a failed migration should leave no tables behind")
	}
}
