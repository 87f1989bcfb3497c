package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/wait"
)

var errTransient = errors.New("transient")

func startPool(t *testing.T, opts Options) (*Pool, func()) {
	t.Helper()
	opts.Log = logr.Discard()
	p := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Start(ctx)
	}()
	require.Eventually(t, func() bool {
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.started
	}, time.Second, time.Millisecond)

	return p, func() {
		cancel()
		<-done
	}
}

func TestSubmitBeforeStart(t *testing.T) {
	p := New(Options{Partitions: 2, Log: logr.Discard()})
	assert.ErrorIs(t, p.Submit(context.Background(), "V1", func(context.Context) error { return nil }), ErrPoolNotStarted)
}

func TestPerKeyOrdering(t *testing.T) {
	p, stop := startPool(t, Options{Partitions: 4, QueueSize: 16})

	var mu sync.Mutex
	got := map[string][]int{}
	for i := 0; i < 50; i++ {
		for _, key := range []string{"V1", "V2", "V3"} {
			i, key := i, key
			require.NoError(t, p.Submit(context.Background(), key, func(context.Context) error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			}))
		}
	}
	stop()

	for _, key := range []string{"V1", "V2", "V3"} {
		require.Len(t, got[key], 50, key)
		for i, v := range got[key] {
			assert.Equal(t, i, v, "key %s out of order", key)
		}
	}
}

func TestRetryableErrorsAreRedelivered(t *testing.T) {
	p, stop := startPool(t, Options{
		Partitions: 1,
		Backoff:    wait.Backoff{Steps: 3, Duration: time.Millisecond, Factor: 1},
		Retryable:  func(err error) bool { return errors.Is(err, errTransient) },
	})

	var transient, permanent atomic.Int32
	require.NoError(t, p.Submit(context.Background(), "V1", func(context.Context) error {
		transient.Add(1)
		return errTransient
	}))
	require.NoError(t, p.Submit(context.Background(), "V1", func(context.Context) error {
		permanent.Add(1)
		return fmt.Errorf("permanent")
	}))
	stop()

	assert.Equal(t, int32(3), transient.Load())
	assert.Equal(t, int32(1), permanent.Load())
}

func TestTaskTimeout(t *testing.T) {
	p, stop := startPool(t, Options{Partitions: 1, Timeout: 10 * time.Millisecond})

	var deadline atomic.Bool
	require.NoError(t, p.Submit(context.Background(), "V1", func(ctx context.Context) error {
		<-ctx.Done()
		deadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}))
	stop()

	assert.True(t, deadline.Load())
}

func TestSubmitAfterStop(t *testing.T) {
	p, stop := startPool(t, Options{Partitions: 1})
	stop()
	assert.ErrorIs(t, p.Submit(context.Background(), "V1", func(context.Context) error { return nil }), ErrPoolClosed)
}

func TestOfIsStable(t *testing.T) {
	assert.Equal(t, Of("V1", 8), Of("V1", 8))
	for _, key := range []string{"a", "b", "c", "VIN123"} {
		idx := Of(key, 5)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 5)
	}
}
