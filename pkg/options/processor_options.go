package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ProcessorOptions)(nil)

// ProcessorOptions configures event handling, the delivery retry policy and
// the device error mapping.
type ProcessorOptions struct {
	// Workers is the number of partitions; events of one vehicle always share a partition.
	Workers int `json:"workers" mapstructure:"workers"`

	// QueueSize is the buffer of every partition.
	QueueSize int `json:"queue-size" mapstructure:"queue-size"`

	// HandlerTimeout bounds the handling of a single event, all I/O included.
	HandlerTimeout time.Duration `json:"handler-timeout" mapstructure:"handler-timeout"`

	// Device delivery retry policy, used to compute the delivery cutoff of a request.
	RetryCount    int           `json:"retry-count" mapstructure:"retry-count"`
	RetryInterval time.Duration `json:"retry-interval" mapstructure:"retry-interval"`
	TTLBuffer     time.Duration `json:"ttl-buffer" mapstructure:"ttl-buffer"`

	// TTLCheckBuffer is the grace added to the cutoff before a response counts as late.
	TTLCheckBuffer time.Duration `json:"ttl-check-buffer" mapstructure:"ttl-check-buffer"`

	// RecoverableRetryDelay is the delay of the schedule armed for an unreachable device.
	RecoverableRetryDelay time.Duration `json:"recoverable-retry-delay" mapstructure:"recoverable-retry-delay"`

	// RCPDTimeout is the delay of the timeout schedule armed for every RCPD request.
	RCPDTimeout time.Duration `json:"rcpd-timeout" mapstructure:"rcpd-timeout"`

	// ExpiryRetention is how long unconsumed expiry entries are kept after their cutoff.
	ExpiryRetention time.Duration `json:"expiry-retention" mapstructure:"expiry-retention"`
	GCInterval      time.Duration `json:"gc-interval" mapstructure:"gc-interval"`

	// DeviceErrors maps device error codes to domain response codes.
	DeviceErrors map[string]string `json:"device-errors" mapstructure:"device-errors"`

	// RecoverableErrors lists device error codes that arm a deferred retry instead of failing.
	RecoverableErrors []string `json:"recoverable-errors" mapstructure:"recoverable-errors"`

	// Redelivery of events whose handler failed with a transient error.
	RedeliverySteps    int           `json:"redelivery-steps" mapstructure:"redelivery-steps"`
	RedeliveryInterval time.Duration `json:"redelivery-interval" mapstructure:"redelivery-interval"`
	RedeliveryFactor   float64       `json:"redelivery-factor" mapstructure:"redelivery-factor"`
}

// NewProcessorOptions creates a ProcessorOptions object with default parameters.
func NewProcessorOptions() *ProcessorOptions {
	return &ProcessorOptions{
		Workers:               16,
		QueueSize:             256,
		HandlerTimeout:        10 * time.Second,
		RetryCount:            3,
		RetryInterval:         30 * time.Second,
		TTLBuffer:             10 * time.Second,
		TTLCheckBuffer:        2 * time.Second,
		RecoverableRetryDelay: 5 * time.Minute,
		RCPDTimeout:           15 * time.Minute,
		ExpiryRetention:       24 * time.Hour,
		GCInterval:            10 * time.Minute,
		DeviceErrors: map[string]string{
			"DEVICE_DELIVERY_CUTOFF_EXCEEDED": "FAIL_MESSAGE_DELIVERY_TIMED_OUT",
			"DEVICE_STATUS_INACTIVE":          "FAIL_VEHICLE_NOT_CONNECTED",
			"DEVICE_RETRIES_EXCEEDED":         "FAIL_DELIVERY_RETRIES_EXCEEDED",
		},
		RecoverableErrors:  []string{"DEVICE_STATUS_INACTIVE"},
		RedeliverySteps:    5,
		RedeliveryInterval: 200 * time.Millisecond,
		RedeliveryFactor:   2.0,
	}
}

// Validate checks the processor settings.
func (o *ProcessorOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.Workers < 1 {
		errs = append(errs, fmt.Errorf("--processor.workers must be at least 1"))
	}
	if o.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("--processor.queue-size must not be negative"))
	}
	if o.HandlerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--processor.handler-timeout must be positive"))
	}
	if o.RetryCount < 0 {
		errs = append(errs, fmt.Errorf("--processor.retry-count must not be negative"))
	}
	if o.RetryInterval < 0 || o.TTLBuffer < 0 || o.TTLCheckBuffer < 0 {
		errs = append(errs, fmt.Errorf("retry interval and ttl buffers must not be negative"))
	}
	if o.RecoverableRetryDelay <= 0 || o.RCPDTimeout <= 0 {
		errs = append(errs, fmt.Errorf("schedule delays must be positive"))
	}
	if o.GCInterval <= 0 {
		errs = append(errs, fmt.Errorf("--processor.gc-interval must be positive"))
	}
	mapped := make(map[string]bool, len(o.DeviceErrors))
	for code := range o.DeviceErrors {
		mapped[strings.ToUpper(code)] = true
	}
	for _, code := range o.RecoverableErrors {
		if !mapped[strings.ToUpper(code)] {
			errs = append(errs, fmt.Errorf("recoverable device error %q has no response code mapping", code))
		}
	}
	if o.RedeliverySteps < 1 || o.RedeliveryFactor < 1 {
		errs = append(errs, fmt.Errorf("redelivery steps and factor must be at least 1"))
	}

	return errs
}

// AddFlags adds flags related to event processing to the specified FlagSet.
func (o *ProcessorOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.Workers, "processor.workers", o.Workers, "Number of partitions processing events concurrently.")
	fs.IntVar(&o.QueueSize, "processor.queue-size", o.QueueSize, "Buffered events per partition.")
	fs.DurationVar(&o.HandlerTimeout, "processor.handler-timeout", o.HandlerTimeout, "Timeout of a single event handler.")
	fs.IntVar(&o.RetryCount, "processor.retry-count", o.RetryCount, "Default device delivery retry count.")
	fs.DurationVar(&o.RetryInterval, "processor.retry-interval", o.RetryInterval, "Default device delivery retry interval.")
	fs.DurationVar(&o.TTLBuffer, "processor.ttl-buffer", o.TTLBuffer, "Buffer added to the delivery window when computing the cutoff.")
	fs.DurationVar(&o.TTLCheckBuffer, "processor.ttl-check-buffer", o.TTLCheckBuffer, "Grace added to the cutoff before a response counts as late.")
	fs.DurationVar(&o.RecoverableRetryDelay, "processor.recoverable-retry-delay", o.RecoverableRetryDelay, "Delay of the schedule armed for unreachable devices.")
	fs.DurationVar(&o.RCPDTimeout, "processor.rcpd-timeout", o.RCPDTimeout, "Timeout of RCPD requests.")
	fs.DurationVar(&o.ExpiryRetention, "processor.expiry-retention", o.ExpiryRetention, "Retention of unconsumed expiry entries after their cutoff.")
	fs.DurationVar(&o.GCInterval, "processor.gc-interval", o.GCInterval, "Interval of the expiry queue garbage collector.")
	fs.StringToStringVar(&o.DeviceErrors, "processor.device-errors", o.DeviceErrors, "Device error code to response code mapping.")
	fs.StringSliceVar(&o.RecoverableErrors, "processor.recoverable-errors", o.RecoverableErrors, "Device error codes that arm a deferred retry.")
	fs.IntVar(&o.RedeliverySteps, "processor.redelivery-steps", o.RedeliverySteps, "Attempts of an event whose handler failed transiently.")
	fs.DurationVar(&o.RedeliveryInterval, "processor.redelivery-interval", o.RedeliveryInterval, "Initial delay between redelivery attempts.")
	fs.Float64Var(&o.RedeliveryFactor, "processor.redelivery-factor", o.RedeliveryFactor, "Backoff factor between redelivery attempts.")
}
