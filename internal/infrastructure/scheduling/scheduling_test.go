package scheduling

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryRejectsNonPositiveInterval(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	defer s.Shutdown()

	assert.ErrorIs(t, s.Every("tick", 0, func(context.Context) error { return nil }), ErrInvalidInterval)
}

func TestEveryRunsJob(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.Every("tick", 20*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
}

func TestSlowJobDoesNotOverlap(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)

	var active, maxActive atomic.Int32
	require.NoError(t, s.Every("slow", 10*time.Millisecond, func(context.Context) error {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		active.Add(-1)
		return nil
	}))
	s.Start()

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, s.Shutdown())
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	defer s.Shutdown()

	assert.NoError(t, s.Remove("missing"))
}
