package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*CacheOptions)(nil)

// Supported cache backends.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// CacheOptions configures the correlation and status caches.
type CacheOptions struct {
	// Backend is "redis" for shared deployments or "memory" for a single replica.
	Backend string `json:"backend" mapstructure:"backend"`

	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`

	// Size caps the number of entries of the memory backend.
	Size int `json:"size" mapstructure:"size"`

	// CorrelationTTL is the lifetime of a requestId_vehicleId entry.
	CorrelationTTL time.Duration `json:"correlation-ttl" mapstructure:"correlation-ttl"`

	// StatusTTL is the lifetime of an RCPD status entry.
	StatusTTL time.Duration `json:"status-ttl" mapstructure:"status-ttl"`

	// Timeout bounds every single cache operation.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewCacheOptions creates a CacheOptions object with default parameters.
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		Backend:        CacheBackendMemory,
		Addr:           "127.0.0.1:6379",
		Size:           100000,
		CorrelationTTL: 10 * time.Minute,
		StatusTTL:      24 * time.Hour,
		Timeout:        500 * time.Millisecond,
	}
}

// Validate checks the backend and its settings.
func (o *CacheOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	switch o.Backend {
	case CacheBackendRedis:
		if err := ValidateAddress(o.Addr); err != nil {
			errs = append(errs, err)
		}
	case CacheBackendMemory:
		if o.Size < 1 {
			errs = append(errs, fmt.Errorf("--cache.size must be at least 1"))
		}
	default:
		errs = append(errs, fmt.Errorf("--cache.backend must be %q or %q, got %q", CacheBackendRedis, CacheBackendMemory, o.Backend))
	}
	if o.CorrelationTTL <= 0 || o.StatusTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttls must be positive"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("--cache.timeout must be positive"))
	}

	return errs
}

// AddFlags adds flags related to the cache to the specified FlagSet.
func (o *CacheOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, "cache.backend", o.Backend, "Cache backend, 'redis' or 'memory'.")
	fs.StringVar(&o.Addr, "cache.addr", o.Addr, "Redis address.")
	fs.StringVar(&o.Password, "cache.password", o.Password, "Redis password.")
	fs.IntVar(&o.DB, "cache.db", o.DB, "Redis logical database.")
	fs.IntVar(&o.Size, "cache.size", o.Size, "Maximum entries of the memory backend.")
	fs.DurationVar(&o.CorrelationTTL, "cache.correlation-ttl", o.CorrelationTTL, "Lifetime of a correlation entry.")
	fs.DurationVar(&o.StatusTTL, "cache.status-ttl", o.StatusTTL, "Lifetime of an RCPD status entry.")
	fs.DurationVar(&o.Timeout, "cache.timeout", o.Timeout, "Timeout of a single cache operation.")
}
