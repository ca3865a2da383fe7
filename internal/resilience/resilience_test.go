package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(3), "hunter.domain_search", func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("busy"), http.StatusServiceUnavailable)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(5), "apollo", func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("unauthorized")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(2), "zoominfo", func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("rate limited"), http.StatusTooManyRequests)
	})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, Policy{Attempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}, "clay", func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("timeout"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Attempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond}.normalized()

	d1 := p.delay(1)
	assert.True(t, d1 > 75*time.Millisecond && d1 <= 100*time.Millisecond, "d1=%s", d1)
	d3 := p.delay(3)
	assert.True(t, d3 <= 250*time.Millisecond, "capped at MaxDelay, got %s", d3)
}

func TestStatusError(t *testing.T) {
	err := StatusError("hunter", http.StatusTooManyRequests, []byte(`{"errors":"slow down"}`))
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "hunter: unexpected status 429")

	err = StatusError("hunter", http.StatusUnauthorized, []byte("bad key"))
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "401")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient wrapper", NewTransientError(errors.New("x"), 502), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"io timeout", errors.New("dial tcp 1.2.3.4:443: i/o timeout"), true},
		{"plain", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	set := NewBreakers(BreakerConfig{Threshold: 2, Cooldown: time.Minute})
	b := set.For("apollo")

	now := time.Now()
	b.now = func() time.Time { return now }

	require.NoError(t, b.Allow())
	b.Record(errors.New("boom"))
	assert.Equal(t, BreakerClosed, b.State())
	b.Record(errors.New("boom"))
	assert.Equal(t, BreakerOpen, b.State())

	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	// Cooldown elapsed: one probe is allowed.
	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())

	b.Record(nil)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	set := NewBreakers(BreakerConfig{Threshold: 1, Cooldown: time.Second})
	b := set.For("hunter")
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Record(errors.New("boom"))
	assert.Equal(t, BreakerOpen, b.State())

	now = now.Add(2 * time.Second)
	require.NoError(t, b.Allow())
	b.Record(errors.New("still down"))
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreakers_SameInstancePerVendor(t *testing.T) {
	set := NewBreakers(BreakerConfig{})
	assert.Same(t, set.For("hunter"), set.For("hunter"))
	assert.NotSame(t, set.For("hunter"), set.For("apollo"))

	snap := set.Snapshot()
	assert.Equal(t, BreakerClosed, snap["hunter"])
	assert.Len(t, snap, 2)
}
