package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionsExpire(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessions(time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	sid, err := s.Create(ctx, "u1")
	require.NoError(t, err)

	got, err := s.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "u1", got)

	clock = clock.Add(2 * time.Minute)
	got, err = s.Get(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultSessionTTL, NewMemorySessions(0).TTL())
	assert.Equal(t, DefaultSessionTTL, NewRedisSessions(nil, -1).TTL())
}
