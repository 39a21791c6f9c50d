package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoresMemory(t *testing.T) {
	ctx := context.Background()
	cfg := Config{DatabaseURL: MemoryDatabaseURL, SeedUsers: true, PasswordSalt: "s"}

	stores, closer, err := OpenStores(ctx, cfg, quietLogger(), true)
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	n, err := stores.Credentials.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stores, _, err = OpenStores(ctx, cfg, quietLogger(), false)
	require.NoError(t, err)
	n, err = stores.Credentials.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
