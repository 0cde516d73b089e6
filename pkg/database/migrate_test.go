package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		body, err := fs.ReadFile(migrationsFS, name)
		require.NoError(t, err)
		text := string(body)
		assert.Contains(t, text, "-- +goose Up", name)
		assert.Contains(t, text, "-- +goose Down", name)
	}
}

func TestSchemaNamesUniqueConstraints(t *testing.T) {
	body, err := fs.ReadFile(migrationsFS, "migrations/00001_directory.sql")
	require.NoError(t, err)
	for _, c := range []string{"users_username_key", "users_email_key", "pirgs_name_key", "groups_pirg_id_name_key"} {
		assert.True(t, strings.Contains(string(body), "CONSTRAINT "+c+" UNIQUE"), c)
	}
}

// stubGooseUp swaps the migration runner for fn until the test ends.
func stubGooseUp(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string) error) {
	t.Helper()
	orig := gooseUp
	gooseUp = fn
	t.Cleanup(func() { gooseUp = orig })
}

// lazyPool never dials; pgxpool only connects on first use.
func lazyPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:1/none?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestMigrateRunsEmbeddedDir(t *testing.T) {
	var (
		calls  int
		gotDir string
	)
	stubGooseUp(t, func(_ context.Context, db *sql.DB, dir string) error {
		calls++
		gotDir = dir
		assert.NotNil(t, db)
		return nil
	})

	require.NoError(t, Migrate(context.Background(), lazyPool(t)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "migrations", gotDir)
}

func TestMigrateWrapsError(t *testing.T) {
	boom := errors.New("relation exists")
	stubGooseUp(t, func(context.Context, *sql.DB, string) error { return boom })

	err := Migrate(context.Background(), lazyPool(t))
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "run migrations")
}
