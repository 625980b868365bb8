package repo

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"guardians-shop/internal/database"
	"guardians-shop/internal/domain"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("shop"),
		postgres.WithUsername("shop"),
		postgres.WithPassword("shop"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(ctx, db))
	return db
}

func TestPostgresOrderRepo(t *testing.T) {
	db := startPostgres(t)

	testOrderRepoContract(t, func(t *testing.T) OrderRepo {
		_, err := db.Exec("TRUNCATE orders")
		require.NoError(t, err)
		return NewOrderRepo(db)
	})
}

func TestPostgresProductRepo(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	n, err := database.SeedProducts(ctx, db, database.DefaultProducts)
	require.NoError(t, err)
	assert.Equal(t, len(database.DefaultProducts), n)

	n, err = database.SeedProducts(ctx, db, database.DefaultProducts)
	require.NoError(t, err)
	assert.Zero(t, n)

	r := NewProductRepo(db)
	p, err := r.FindBySKU(ctx, "vip_oficial")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 29.99, p.Price)
	assert.Contains(t, p.RconCommand, domain.PlayerPlaceholder)
	assert.Contains(t, p.RconCommand, "VIPToken_Official")

	missing, err := r.FindBySKU(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
