//go:build integration

package sqlstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"teamreg/internal/platform/database"
	"teamreg/internal/registration/store/sqlstore"
	"teamreg/internal/registration/store/storetest"
	"teamreg/pkg/testutil/containers"
)

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pg := containers.GetManager().GetPostgres(t)
	_, err := database.MigratePostgres(pg.DB)
	require.NoError(t, err)

	suite.Run(t, &storetest.Suite{
		NewStore: func() storetest.Store {
			require.NoError(t, pg.TruncateTables(context.Background(), "team_members", "registrations"))
			return sqlstore.NewPostgres(pg.DB)
		},
	})
}

func TestPostgresMigrationsAreIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pg := containers.GetManager().GetPostgres(t)
	first, err := database.MigratePostgres(pg.DB)
	require.NoError(t, err)
	second, err := database.MigratePostgres(pg.DB)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, second)
}
