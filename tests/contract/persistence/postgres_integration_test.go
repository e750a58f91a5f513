package persistence_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	dbmigrations "github.com/coachpo/shimmer/db/migrations"
	"github.com/coachpo/shimmer/internal/domain/tokenstore"
	"github.com/coachpo/shimmer/internal/infra/persistence/migrations"
	pgstore "github.com/coachpo/shimmer/internal/infra/persistence/postgres"
)

var (
	testPool    *pgxpool.Pool
	testDSN     string
	pgContainer testcontainers.Container
	setupErr    error
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "shimmer"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		setupErr = fmt.Errorf("start container: %w", err)
	} else {
		pgContainer = container
		setupErr = initialiseDatabase(ctx)
	}
	if setupErr != nil {
		fmt.Fprintf(os.Stderr, "postgres contract tests skipped: %v\n", setupErr)
	}

	exitCode := m.Run()

	if testPool != nil {
		testPool.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	os.Exit(exitCode)
}

func initialiseDatabase(ctx context.Context) error {
	host, err := pgContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	testDSN = fmt.Sprintf("postgres://postgres:secret@%s:%s/shimmer?sslmode=disable", host, port.Port())

	if err := migrations.Apply(ctx, testDSN, migrationsDir(), nil); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, testDSN)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	testPool = pool
	return nil
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
	return filepath.Join(root, "db", "migrations")
}

func requireDatabase(t *testing.T) {
	t.Helper()
	if setupErr != nil {
		t.Skipf("postgres unavailable: %v", setupErr)
	}
}

func TestTokenStoreLifecycle(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()
	store := pgstore.New(testPool).Tokens()
	key := tokenstore.Key{UserID: "user-1", Provider: "fitbit"}

	if _, err := store.Load(ctx, key); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}

	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	token := tokenstore.Token{
		UserID:       "user-1",
		Provider:     "Fitbit",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Scopes:       []string{"activity", "sleep"},
		VendorUserID: "ABC123",
		ExpiresAt:    expires,
	}
	if err := store.Save(ctx, token); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.AccessToken != "access-1" || loaded.RefreshToken != "refresh-1" || loaded.VendorUserID != "ABC123" {
		t.Fatalf("unexpected token %+v", loaded)
	}
	if !loaded.ExpiresAt.Equal(expires) {
		t.Fatalf("expected expiry %s, got %s", expires, loaded.ExpiresAt)
	}
	if len(loaded.Scopes) != 2 || loaded.Scopes[1] != "sleep" {
		t.Fatalf("unexpected scopes %v", loaded.Scopes)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be set")
	}

	token.AccessToken = "access-2"
	token.ExpiresAt = time.Time{}
	if err := store.Save(ctx, token); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	loaded, err = store.Load(ctx, key)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.AccessToken != "access-2" || !loaded.ExpiresAt.IsZero() {
		t.Fatalf("expected upserted token, got %+v", loaded)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, key); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("deleting a missing token should succeed: %v", err)
	}
}

func TestTokensAreScopedPerProvider(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()
	store := pgstore.NewTokenStore(testPool)

	for _, provider := range []string{"withings", "jawbone"} {
		token := tokenstore.Token{UserID: "user-2", Provider: provider, AccessToken: provider + "-token"}
		if err := store.Save(ctx, token); err != nil {
			t.Fatalf("save %s: %v", provider, err)
		}
	}
	loaded, err := store.Load(ctx, tokenstore.Key{UserID: "user-2", Provider: "jawbone"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.AccessToken != "jawbone-token" {
		t.Fatalf("expected jawbone token, got %q", loaded.AccessToken)
	}
	if len(loaded.Scopes) != 0 {
		t.Fatalf("expected empty scopes, got %v", loaded.Scopes)
	}
}

func TestEmbeddedMigrationsReapplyCleanly(t *testing.T) {
	requireDatabase(t)
	if err := migrations.ApplyFS(context.Background(), testDSN, dbmigrations.Files, nil); err != nil {
		t.Fatalf("apply embedded migrations over applied schema: %v", err)
	}
}
