package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAppliesSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "teamreg.db")

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name IN ('registrations', 'team_members')`).Scan(&n))
	assert.Equal(t, 2, n)

	// Reopening applies the schema idempotently.
	require.NoError(t, db.Close())
	db, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	_ = db.Close()
}

func TestOpenRejectsMissingConfig(t *testing.T) {
	ctx := context.Background()

	_, err := OpenSQLite(ctx, "")
	assert.Error(t, err)

	_, err = OpenPostgres(ctx, DriverPgx, "", Options{})
	assert.Error(t, err)

	_, err = OpenPostgres(ctx, "mysql", "dsn", Options{})
	assert.Error(t, err)
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres(DriverPgx))
	assert.True(t, IsPostgres(DriverPostgres))
	assert.False(t, IsPostgres(DriverSQLite))
	assert.False(t, IsPostgres(DriverMemory))
}
