package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSessionRegistryCreateFindRevoke(t *testing.T) {
	reg := NewSessionRegistry(NewMemorySessionRepository())
	ctx := context.Background()

	s, err := reg.Create(ctx, "admin", "tok-1")
	require.NoError(t, err)
	assert.Len(t, s.ID, 32)
	assert.Equal(t, DefaultSessionTTL, s.ExpiresAt.Sub(s.CreatedAt))

	live, err := reg.FindLive(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "admin", live.Username)

	require.NoError(t, reg.Revoke(ctx, "tok-1"))
	_, err = reg.FindLive(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, reg.Revoke(ctx, "tok-1"))
	assert.NoError(t, reg.Revoke(ctx, "never-issued"))
}

func TestSessionRegistryExpiryIsNotLive(t *testing.T) {
	clock := &steppingClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewSessionRegistry(NewMemorySessionRepository()).WithClock(clock.Now)
	ctx := context.Background()

	_, err := reg.CreateWithTTL(ctx, "Elena", "tok", time.Hour)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = reg.FindLive(ctx, "tok")
	assert.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = reg.FindLive(ctx, "tok")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRegistryLazyCleanup(t *testing.T) {
	clock := &steppingClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewMemorySessionRepository()
	reg := NewSessionRegistry(repo).WithClock(clock.Now)
	ctx := context.Background()

	for i, ttl := range []time.Duration{0, -time.Minute} {
		_, err := reg.CreateWithTTL(ctx, "Anna", fmt.Sprintf("expired-%d", i), ttl)
		require.NoError(t, err)
	}
	_, err := reg.FindLive(ctx, "expired-0")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Create(ctx, "admin", "fresh")
	require.NoError(t, err)

	n, err := reg.Stored(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = reg.FindLive(ctx, "expired-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRegistryConcurrentLoginLogout(t *testing.T) {
	reg := NewSessionRegistry(NewMemorySessionRepository())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", i)
			if _, err := reg.Create(ctx, fmt.Sprintf("user-%d", i), token); err != nil {
				t.Errorf("create %s: %v", token, err)
				return
			}
			if i%2 == 0 {
				_ = reg.Revoke(ctx, token)
			}
		}(i)
	}
	wg.Wait()

	n, err := reg.Stored(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	for i := 0; i < 50; i++ {
		_, err := reg.FindLive(ctx, fmt.Sprintf("tok-%d", i))
		if i%2 == 0 {
			assert.ErrorIs(t, err, ErrNotFound)
		} else {
			assert.NoError(t, err)
		}
	}
}
