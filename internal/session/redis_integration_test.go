//go:build integration

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"parcelview/internal/errors"
	"parcelview/internal/viewstate"
)

func setupRedis(t *testing.T) *RedisStore {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		redisC.Terminate(ctx)
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	store := NewRedisStore(NewRedisClient(host+":"+port.Port(), "", 0), time.Minute)
	t.Cleanup(func() {
		store.Close()
	})
	require.NoError(t, store.Ping(ctx))
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupRedis(t)

	row := 3
	in := &Session{
		ID:         "abc",
		User:       "surveyor",
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		DatasetKey: "k1",
		View:       &viewstate.State{Center: [2]float64{-97.3, 32.7}, Zoom: 18, Selected: &row, Levels: viewstate.DefaultLevels()},
	}
	require.NoError(t, store.Put(ctx, in))

	out, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
}

func TestRedisStoreBacksManager(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewGate("u", "p"), setupRedis(t), viewstate.DefaultLevels())

	s, err := m.Login(ctx, "u", "p")
	require.NoError(t, err)
	_, _, err = m.Select(ctx, s, fixture("k1"), 1)
	require.NoError(t, err)

	got, err := m.Lookup(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.View)
	assert.Equal(t, 1, *got.View.Selected)
}
