package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.calls.Add(1)
	return 2, s.err
}

func TestScheduler_RunSweep(t *testing.T) {
	sw := &countingSweeper{}
	NewScheduler(sw).RunSweep()
	assert.Equal(t, int32(1), sw.calls.Load())

	failing := &countingSweeper{err: errors.New("redis down")}
	NewScheduler(failing).RunSweep()
	assert.Equal(t, int32(1), failing.calls.Load())
}

func TestScheduler_Start(t *testing.T) {
	t.Run("rejects bad spec", func(t *testing.T) {
		assert.Error(t, NewScheduler(&countingSweeper{}).Start("not a cron spec"))
	})

	t.Run("fires on schedule", func(t *testing.T) {
		sw := &countingSweeper{}
		s := NewScheduler(sw)
		require.NoError(t, s.Start("* * * * * *"))
		defer s.Stop(context.Background())

		assert.Eventually(t, func() bool { return sw.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	})
}
