package ratelimiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowAdmitsUpToLimit(t *testing.T) {
	t.Parallel()

	l := New(Opts{Policy: PolicyWindow, Limit: 5})
	now := time.Now()
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		require.True(t, l.CheckAndRecord("alice").Allowed, "request %d should be admitted", i+1)
	}

	v := l.CheckAndRecord("alice")
	require.False(t, v.Allowed)
	assert.Equal(t, 60, v.Seconds())
}

func TestWindowAdmitsAfterWindowPasses(t *testing.T) {
	t.Parallel()

	l := New(Opts{Policy: PolicyWindow, Limit: 2})
	now := time.Now()
	l.now = func() time.Time { return now }

	require.True(t, l.CheckAndRecord("bob").Allowed)
	require.True(t, l.CheckAndRecord("bob").Allowed)
	require.False(t, l.CheckAndRecord("bob").Allowed)

	now = now.Add(61 * time.Second)
	assert.True(t, l.CheckAndRecord("bob").Allowed)
}

func TestWindowPrunesLazily(t *testing.T) {
	t.Parallel()

	l := New(Opts{Policy: PolicyWindow, Limit: 3})
	now := time.Now()
	l.now = func() time.Time { return now }

	require.True(t, l.CheckAndRecord("carol").Allowed)
	now = now.Add(2 * time.Minute)
	require.True(t, l.CheckAndRecord("carol").Allowed)

	assert.Len(t, l.history["carol"], 1, "stale timestamps should be pruned on check")
}

func TestWindowUsersAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Opts{Policy: PolicyWindow, Limit: 1})
	require.True(t, l.CheckAndRecord("dave").Allowed)
	require.False(t, l.CheckAndRecord("dave").Allowed)
	assert.True(t, l.CheckAndRecord("erin").Allowed)
}

func TestCooldownRejectsWithRemainingSeconds(t *testing.T) {
	t.Parallel()

	l := New(Opts{Policy: PolicyCooldown, Cooldown: 10 * time.Second})
	start := time.Now()
	now := start
	l.now = func() time.Time { return now }

	require.True(t, l.CheckAndRecord("alice").Allowed)

	now = start.Add(9 * time.Second)
	v := l.CheckAndRecord("alice")
	require.False(t, v.Allowed)
	assert.Equal(t, 1, v.Seconds())

	now = start.Add(10 * time.Second)
	assert.True(t, l.CheckAndRecord("alice").Allowed)
}

func TestCooldownOverwritesLastRequest(t *testing.T) {
	t.Parallel()

	l := New(Opts{Policy: PolicyCooldown, Cooldown: 10 * time.Second})
	start := time.Now()
	now := start
	l.now = func() time.Time { return now }

	require.True(t, l.CheckAndRecord("bob").Allowed)
	now = start.Add(10 * time.Second)
	require.True(t, l.CheckAndRecord("bob").Allowed)

	// The second admission restarts the cooldown.
	now = start.Add(19 * time.Second)
	assert.False(t, l.CheckAndRecord("bob").Allowed)
}

func TestConcurrentChecksNeverExceedLimit(t *testing.T) {
	t.Parallel()

	const limit = 10
	l := New(Opts{Policy: PolicyWindow, Limit: limit})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckAndRecord("shared").Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, admitted)
}
