//go:build integration
// +build integration

package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const shopDDL = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	created_at TIMESTAMP
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	user_id INTEGER REFERENCES users(id),
	total DECIMAL(10,2) NOT NULL
);
`

func TestSQLiteCatalog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = raw.Exec(shopDDL)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	catalog, err := Open(ctx, "sqlite://"+path, "")
	require.NoError(t, err)
	defer func() { _ = catalog.Close(ctx) }()

	tables, err := catalog.ReadTables(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assertShopTables(t, tables)
}

func TestPostgresCatalog(t *testing.T) {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("shop"),
		postgres.WithUsername("ldm"),
		postgres.WithPassword("ldm"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := NewPostgresClient(ctx, url)
	require.NoError(t, err)
	_, err = client.GetConnection().Exec(ctx, shopDDL)
	require.NoError(t, err)
	_, err = client.GetConnection().Exec(ctx, `COMMENT ON TABLE users IS 'Registered users'`)
	require.NoError(t, err)
	require.NoError(t, client.Close(ctx))

	catalog, err := Open(ctx, url, "")
	require.NoError(t, err)
	defer func() { _ = catalog.Close(ctx) }()

	tables, err := catalog.ReadTables(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assertShopTables(t, tables)
	assert.Equal(t, "Registered users", tables[1].Comment)
}

// assertShopTables expects tables in name order: orders, users
func assertShopTables(t *testing.T, tables []Table) {
	t.Helper()

	orders, users := tables[0], tables[1]
	require.Equal(t, "orders", orders.Name)
	require.Equal(t, "users", users.Name)

	require.Len(t, users.Columns, 3)
	assert.True(t, users.Columns[0].IsPrimaryKey)
	assert.False(t, users.Columns[0].Nullable)
	assert.True(t, users.Columns[1].IsUnique)
	assert.False(t, users.Columns[1].Nullable)
	assert.True(t, users.Columns[2].Nullable)

	require.Len(t, orders.Columns, 3)
	assert.Equal(t, "users", orders.Columns[1].RefTable)
	assert.Equal(t, "id", orders.Columns[1].RefColumn)
	assert.False(t, orders.Columns[2].Nullable)
}
