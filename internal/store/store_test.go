package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"clinician-console/internal/credential"
	"clinician-console/internal/store"
)

// roundTrip exercises any backend the same way.
func roundTrip(t *testing.T, b credential.Backend) {
	t.Helper()
	ctx := context.Background()

	if err := b.Delete(ctx); err != nil {
		t.Fatalf("delete on empty: %v", err)
	}
	if _, err := b.Load(ctx); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := b.Save(ctx, "one"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := b.Save(ctx, "two"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	tok, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tok != "two" {
		t.Errorf("expected two, got %s", tok)
	}
	if err := b.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Load(ctx); !errors.Is(err, credential.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	roundTrip(t, store.NewFile(path))
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := store.NewFile(path).Save(context.Background(), "secret"); err != nil {
		t.Fatalf("save: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600, got %v", fi.Mode().Perm())
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	os.WriteFile(path, []byte("{not json"), 0o600)
	if _, err := store.NewFile(path).Load(context.Background()); err == nil || errors.Is(err, credential.ErrNotFound) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestPostgresStore(t *testing.T) {
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)

	st := store.New(pool)
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	roundTrip(t, st)
}

func TestRedisStore(t *testing.T) {
	_ = godotenv.Load("../../.env")
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	rdb, err := store.DialRedis(context.Background(), url)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	roundTrip(t, store.NewRedis(rdb, "clinician-console-test"))
}
