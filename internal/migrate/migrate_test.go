package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	require.NoError(t, setup())
	ms, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	require.Equal(t, int64(1), ms[0].Version)
	require.Equal(t, int64(2), ms[1].Version)

	latest, err := Latest()
	require.NoError(t, err)
	require.Equal(t, int64(2), latest)
}

func TestUnreachableDatabase(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dsn := "postgres://u:p@127.0.0.1:1/rewards?sslmode=disable&connect_timeout=1"

	require.Error(t, Up(ctx, dsn))
	_, err := Status(ctx, dsn)
	require.Error(t, err)
}
