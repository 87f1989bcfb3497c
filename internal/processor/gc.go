package processor

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/remoteops/internal/pkg/metrics"
	"github.com/autopeer-io/remoteops/internal/processor/core"
)

// ExpiryCollector periodically removes expiry entries that nobody consumed.
// An entry is consumed when its response arrives; entries of requests that
// never got one would otherwise stay forever.
type ExpiryCollector struct {
	queue     core.ExpiryQueue
	interval  time.Duration
	retention time.Duration
	clock     clock.WithTicker
	log       logr.Logger
}

func NewExpiryCollector(queue core.ExpiryQueue, interval, retention time.Duration, clk clock.WithTicker, log logr.Logger) *ExpiryCollector {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ExpiryCollector{
		queue:     queue,
		interval:  interval,
		retention: retention,
		clock:     clk,
		log:       log.WithName("expiry-gc"),
	}
}

// Start runs the collector until ctx is cancelled.
func (c *ExpiryCollector) Start(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.Info("Expiry collector started", "interval", c.interval, "retention", c.retention)

	for {
		select {
		case <-ticker.C():
			c.collect(ctx)
		case <-ctx.Done():
			c.log.Info("Expiry collector stopped")
			return nil
		}
	}
}

func (c *ExpiryCollector) collect(ctx context.Context) {
	n, err := c.queue.Purge(ctx, c.clock.Now().Add(-c.retention))
	if err != nil {
		c.log.Error(err, "Failed to purge expiry entries")
		return
	}
	if n > 0 {
		metrics.ExpiryEntriesPurged.Add(float64(n))
		c.log.V(1).Info("Purged expiry entries", "count", n)
	}
}
