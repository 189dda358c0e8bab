//go:build integration

package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lineage/internal/testutil/containers"
)

func TestPostgresDriver_Integration(t *testing.T) {
	pg := containers.NewPostgresContainer(t, "lineage_default_tests", "lineage", "lineage")

	d, err := Lookup(PostgresName)
	require.NoError(t, err)

	target := defaultTarget
	target.Host = pg.HostPort
	conn, err := d.Open(context.Background(), d.ConnectionURI(target))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.Ping(context.Background()))
}

func TestPostgresDriver_Integration_WrongPassword(t *testing.T) {
	pg := containers.NewPostgresContainer(t, "lineage_default_tests", "lineage", "lineage")

	d, err := Lookup(PostgresName)
	require.NoError(t, err)

	target := defaultTarget
	target.Host = pg.HostPort
	target.Password = "wrong"
	conn, err := d.Open(context.Background(), d.ConnectionURI(target))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Error(t, conn.Ping(context.Background()))
}

func TestRedisDriver_Integration(t *testing.T) {
	rc := containers.NewRedisContainer(t)

	d, err := Lookup(RedisName)
	require.NoError(t, err)

	for _, index := range []int{0, 1} {
		target := Target{Host: rc.HostPort, Index: index}
		conn, err := d.Open(context.Background(), d.ConnectionURI(target))
		require.NoError(t, err)
		require.NoError(t, conn.Ping(context.Background()))
		require.NoError(t, conn.Close())
	}

	require.NoError(t, rc.Client.Set(context.Background(), "article:1", "hello", 0).Err())
	conn, err := d.Open(context.Background(), d.ConnectionURI(Target{Host: rc.HostPort, Index: 0}))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	n, err := conn.(Flusher).Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, rc.FlushAll(context.Background()))
}
