package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/remoteops/internal/pkg/metrics"
	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/pkg/options"
)

var (
	_ core.Cache            = (*Cache)(nil)
	_ core.CorrelationCache = (*correlationCache)(nil)
	_ core.StatusCache      = (*statusCache)(nil)
)

// Config holds the settings of the cache views.
type Config struct {
	CorrelationTTL time.Duration
	StatusTTL      time.Duration
	Timeout        time.Duration
}

// Cache exposes the correlation and RCPD status views over one Store.
type Cache struct {
	store       Store
	correlation *correlationCache
	status      *statusCache
	ping        func(context.Context) error
	closer      func() error
}

// New builds the views over store.
func New(store Store, cfg Config) *Cache {
	c := &Cache{store: store}
	if cl, ok := store.(io.Closer); ok {
		c.closer = cl.Close
	}
	c.correlation = &correlationCache{c: c, ttl: cfg.CorrelationTTL, timeout: cfg.Timeout}
	c.status = &statusCache{c: c, ttl: cfg.StatusTTL, timeout: cfg.Timeout}
	return c
}

// Open creates the backend selected by opts.
func Open(ctx context.Context, opts *options.CacheOptions) (*Cache, error) {
	cfg := Config{
		CorrelationTTL: opts.CorrelationTTL,
		StatusTTL:      opts.StatusTTL,
		Timeout:        opts.Timeout,
	}

	switch opts.Backend {
	case options.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("cache: connect redis %s: %w", opts.Addr, err)
		}
		store := NewRedisStore(client)
		c := New(store, cfg)
		c.ping = store.Ping
		return c, nil
	case options.CacheBackendMemory:
		maxTTL := max(opts.CorrelationTTL, opts.StatusTTL)
		return New(NewMemoryStore(opts.Size, maxTTL, clock.RealClock{}), cfg), nil
	default:
		return nil, fmt.Errorf("cache: unsupported backend %q", opts.Backend)
	}
}

func (c *Cache) Correlation() core.CorrelationCache { return c.correlation }
func (c *Cache) Status() core.StatusCache           { return c.status }

// Ping checks the backend; the memory backend is always ready.
func (c *Cache) Ping(ctx context.Context) error {
	if c.ping == nil {
		return nil
	}
	return c.ping(ctx)
}

// Close releases the backend connections; the memory backend holds none.
func (c *Cache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// CorrelationKey is the key of a correlation entry.
func CorrelationKey(vehicleID, requestID string) string {
	return requestID + "_" + vehicleID
}

// RCPDStatusKey is the key of an RCPD status entry.
func RCPDStatusKey(userID, vehicleID string) string {
	return "RCPD_" + userID + "_" + vehicleID
}

type correlationCache struct {
	c       *Cache
	ttl     time.Duration
	timeout time.Duration
}

func (cc *correlationCache) Get(ctx context.Context, vehicleID, requestID string) (*model.RequestContext, bool, error) {
	ctx, cancel := withTimeout(ctx, cc.timeout)
	defer cancel()

	b, ok, err := cc.c.store.Get(ctx, CorrelationKey(vehicleID, requestID))
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false, core.Transient(err, "read correlation cache")
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	var rc model.RequestContext
	if err := json.Unmarshal(b, &rc); err != nil {
		// A corrupt entry is treated as a miss and repopulated from the store.
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &rc, true, nil
}

func (cc *correlationCache) Put(ctx context.Context, vehicleID, requestID string, rc model.RequestContext) error {
	b, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("encode request context: %w", err)
	}

	ctx, cancel := withTimeout(ctx, cc.timeout)
	defer cancel()
	return core.Transient(cc.c.store.Set(ctx, CorrelationKey(vehicleID, requestID), b, cc.ttl), "write correlation cache")
}

func (cc *correlationCache) SetScheduleID(ctx context.Context, vehicleID, requestID, scheduleID string) error {
	rc, ok, err := cc.Get(ctx, vehicleID, requestID)
	if err != nil || !ok {
		return err
	}
	rc.ScheduleID = scheduleID

	b, err := json.Marshal(rc)
	if err != nil {
		return fmt.Errorf("encode request context: %w", err)
	}

	ctx, cancel := withTimeout(ctx, cc.timeout)
	defer cancel()
	_, err = cc.c.store.Replace(ctx, CorrelationKey(vehicleID, requestID), b)
	return core.Transient(err, "update correlation cache")
}

func (cc *correlationCache) Delete(ctx context.Context, vehicleID, requestID string) error {
	ctx, cancel := withTimeout(ctx, cc.timeout)
	defer cancel()
	return core.Transient(cc.c.store.Delete(ctx, CorrelationKey(vehicleID, requestID)), "delete correlation entry")
}

type statusCache struct {
	c       *Cache
	ttl     time.Duration
	timeout time.Duration
}

func (sc *statusCache) PutRCPDStatus(ctx context.Context, userID, vehicleID string, status model.RCPDStatus) error {
	ctx, cancel := withTimeout(ctx, sc.timeout)
	defer cancel()
	return core.Transient(sc.c.store.Set(ctx, RCPDStatusKey(userID, vehicleID), []byte(status), sc.ttl), "write rcpd status")
}

func (sc *statusCache) GetRCPDStatus(ctx context.Context, userID, vehicleID string) (model.RCPDStatus, bool, error) {
	ctx, cancel := withTimeout(ctx, sc.timeout)
	defer cancel()

	b, ok, err := sc.c.store.Get(ctx, RCPDStatusKey(userID, vehicleID))
	if err != nil {
		return "", false, core.Transient(err, "read rcpd status")
	}
	if !ok {
		return "", false, nil
	}
	return model.RCPDStatus(b), true, nil
}

func (sc *statusCache) DeleteRCPDStatus(ctx context.Context, userID, vehicleID string) error {
	ctx, cancel := withTimeout(ctx, sc.timeout)
	defer cancel()
	return core.Transient(sc.c.store.Delete(ctx, RCPDStatusKey(userID, vehicleID)), "delete rcpd status")
}
