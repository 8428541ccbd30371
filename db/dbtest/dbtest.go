// Package dbtest поднимает чистую SQLite в памяти с боевыми миграциями.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"agrimarket/db"
	"agrimarket/db/migrations"
)

func NewStorage(t testing.TB) *db.Storage {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, migrations.Run(ctx, conn.DB, "sqlite", nil))
	return db.NewStorage(conn)
}
