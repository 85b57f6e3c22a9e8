package browser_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ImageHarvester/internal/browser"
	"ImageHarvester/internal/browser/browsertest"
	"ImageHarvester/internal/metrics"
	"ImageHarvester/internal/models"
)

func newPool(t *testing.T, max int, d browser.Driver) *browser.Pool {
	t.Helper()
	p := browser.NewPool(browser.PoolConfig{
		MaxInstances: max,
		IdleTimeout:  time.Minute,
		ReapInterval: time.Hour,
	}, d, metrics.New())
	t.Cleanup(p.Shutdown)
	return p
}

func TestPoolReusesReleasedSession(t *testing.T) {
	d := browsertest.NewDriver()
	p := newPool(t, 2, d)
	ctx := context.Background()

	s1, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(s1)

	s2, err := p.Acquire(ctx)
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.EqualValues(t, 1, d.Launches.Load())
	assert.Equal(t, 1, p.Live())
	assert.Equal(t, 1, p.Busy())
}

func TestPoolNeverExceedsMaxInstances(t *testing.T) {
	d := browsertest.NewDriver()
	p := newPool(t, 3, d)
	ctx := context.Background()

	var busy, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Acquire(ctx)
			if !assert.NoError(t, err) {
				return
			}
			n := busy.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			busy.Add(-1)
			p.Release(s)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.LessOrEqual(t, d.Launches.Load(), int32(3))
	assert.LessOrEqual(t, p.Live(), 3)
	assert.Equal(t, 0, p.Busy())
}

func TestPoolAcquireWaitsForRelease(t *testing.T) {
	p := newPool(t, 1, browsertest.NewDriver())
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	got := make(chan *browser.Session, 1)
	go func() {
		s, err := p.Acquire(ctx)
		if err == nil {
			got <- s
		}
	}()

	select {
	case <-got:
		t.Fatal("acquire returned while the only session was busy")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(held)
	select {
	case s := <-got:
		assert.Same(t, held, s)
	case <-time.After(time.Second):
		t.Fatal("waiting acquire was not woken by release")
	}
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	p := newPool(t, 1, browsertest.NewDriver())

	_, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolLaunchFailureIsNotRegistered(t *testing.T) {
	d := browsertest.NewDriver()
	d.FailLaunches(1)
	p := newPool(t, 1, d)

	_, err := p.Acquire(context.Background())
	var ce *models.SessionCreationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "fake", ce.Driver)
	assert.Equal(t, 0, p.Live())

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, 1, p.Live())
}

func TestPoolReleaseUnknownSessionIsNoop(t *testing.T) {
	p := newPool(t, 1, browsertest.NewDriver())
	p.Release(nil)
	p.Release(&browser.Session{ID: "stranger"})
	assert.Equal(t, 0, p.Live())
}

func TestPoolReapsIdleSessions(t *testing.T) {
	d := browsertest.NewDriver()
	p := newPool(t, 2, d)
	ctx := context.Background()

	now := time.Now()
	p.SetClock(func() time.Time { return now })

	idle, err := p.Acquire(ctx)
	require.NoError(t, err)
	busy, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(idle)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 0, p.ReapIdle(), "not idle long enough")

	now = now.Add(31 * time.Second)
	assert.Equal(t, 1, p.ReapIdle())
	assert.Equal(t, 1, p.Live())
	assert.EqualValues(t, 1, d.Terminates.Load())

	p.Release(busy)
	assert.Equal(t, 0, p.Busy())
}

func TestPoolShutdownClosesEverything(t *testing.T) {
	d := browsertest.NewDriver()
	p := browser.NewPool(browser.PoolConfig{MaxInstances: 2}, d, nil)
	ctx := context.Background()

	s, err := p.Acquire(ctx)
	require.NoError(t, err)
	_, err = p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(s)

	p.Shutdown()
	p.Shutdown()

	assert.EqualValues(t, 2, d.Terminates.Load())
	assert.Equal(t, 0, p.Live())
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, models.ErrPoolClosed)
}

func TestPoolShutdownWakesWaiters(t *testing.T) {
	p := browser.NewPool(browser.PoolConfig{MaxInstances: 1}, browsertest.NewDriver(), nil)
	_, err := p.Acquire(context.Background())
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	p.Shutdown()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, models.ErrPoolClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by shutdown")
	}
}
