package database

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"guardians-shop/internal/domain"
)

func TestConfigDSN(t *testing.T) {
	dsn := Config{
		Host:     "db.internal",
		Port:     "5432",
		Username: "shop",
		Password: "p@ss:word",
		Database: "guardians",
		Schema:   "public",
	}.DSN()

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/guardians", u.Path)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss:word", pass)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "public", u.Query().Get("search_path"))
}

func TestDefaultProductsHavePlayerPlaceholder(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range DefaultProducts {
		assert.False(t, seen[p.SKU], "duplicate sku %s", p.SKU)
		seen[p.SKU] = true
		assert.Equal(t, 1, strings.Count(p.RconCommand, domain.PlayerPlaceholder), p.SKU)
		assert.Positive(t, p.Price, p.SKU)
	}
	assert.True(t, seen["vip_oficial"])
}

func TestMigrateAndHealth(t *testing.T) {
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

	db, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	svc := New(db)
	t.Cleanup(func() { svc.Close() })

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "migration must be repeatable")

	stats := svc.Health(ctx)
	assert.Equal(t, "up", stats["status"])
	assert.NotEmpty(t, stats["open_connections"])
}
