package processor

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/autopeer-io/remoteops/internal/pkg/partition"
	"github.com/autopeer-io/remoteops/internal/processor/cache"
	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
	"github.com/autopeer-io/remoteops/internal/processor/core/service"
	"github.com/autopeer-io/remoteops/internal/processor/publisher"
	"github.com/autopeer-io/remoteops/internal/processor/server"
	httpserver "github.com/autopeer-io/remoteops/internal/processor/server/http"
	mqttserver "github.com/autopeer-io/remoteops/internal/processor/server/mqtt"
	"github.com/autopeer-io/remoteops/internal/processor/settings"
	"github.com/autopeer-io/remoteops/internal/processor/store"
	"github.com/autopeer-io/remoteops/pkg/log"
	"github.com/autopeer-io/remoteops/pkg/mqtt/topic"
	"github.com/autopeer-io/remoteops/pkg/options"
)

type Config struct {
	MqttOptions         *options.MqttOptions
	HttpOptions         *options.HttpOptions
	DatabaseOptions     *options.DatabaseOptions
	CacheOptions        *options.CacheOptions
	ProcessorOptions    *options.ProcessorOptions
	NotificationOptions *options.NotificationOptions
	SettingsOptions     *options.SettingsOptions
}

// ServiceConfig converts the processor options into the service configuration.
// Codes are upper-cased since configuration files may lowercase map keys.
func (cfg *Config) ServiceConfig() *service.Config {
	po := cfg.ProcessorOptions

	deviceErrors := make(map[string]model.ResponseCode, len(po.DeviceErrors))
	for code, rc := range po.DeviceErrors {
		deviceErrors[strings.ToUpper(code)] = model.ResponseCode(strings.ToUpper(rc))
	}

	recoverable := sets.New[string]()
	for _, code := range po.RecoverableErrors {
		recoverable.Insert(strings.ToUpper(code))
	}

	notifications := make(map[model.ResponseCode]string, len(cfg.NotificationOptions.Mappings))
	for rc, id := range cfg.NotificationOptions.Mappings {
		notifications[model.ResponseCode(strings.ToUpper(rc))] = id
	}

	return &service.Config{
		Retry: service.RetryPolicy{
			Count:     po.RetryCount,
			Interval:  po.RetryInterval,
			TTLBuffer: po.TTLBuffer,
		},
		TTLCheckBuffer:        po.TTLCheckBuffer,
		RecoverableRetryDelay: po.RecoverableRetryDelay,
		RCPDTimeout:           po.RCPDTimeout,
		DeviceErrors:          deviceErrors,
		RecoverableErrors:     recoverable,
		Notifications:         notifications,
		NotificationSinks:     cfg.NotificationOptions.Sinks,
	}
}

// PoolOptions converts the processor options into partition pool options.
func (cfg *Config) PoolOptions() partition.Options {
	po := cfg.ProcessorOptions
	return partition.Options{
		Partitions: po.Workers,
		QueueSize:  po.QueueSize,
		Timeout:    po.HandlerTimeout,
		Backoff: wait.Backoff{
			Duration: po.RedeliveryInterval,
			Factor:   po.RedeliveryFactor,
			Jitter:   0.1,
			Steps:    po.RedeliverySteps,
		},
		Retryable: core.IsRetryable,
		Log:       log.WithName("partition").Logr(),
	}
}

func (cfg *Config) NewProcessor(ctx context.Context) (*Processor, error) {
	// 1. Infrastructure: request store and correlation cache
	repo, err := store.Open(cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open request store: %w", err)
	}

	c, err := cache.Open(ctx, cfg.CacheOptions)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	release := func() {
		_ = c.Close()
		_ = repo.Close()
	}

	// 2. Infrastructure: broker clients. Neither holds a connection before Start.
	ingress, err := InitializeMQTTClient(cfg.MqttOptions)
	if err != nil {
		release()
		return nil, err
	}
	egress, err := InitializeEgressClient(cfg.MqttOptions)
	if err != nil {
		release()
		return nil, err
	}

	topics := topic.NewBuilder(cfg.MqttOptions.TopicRoot)
	pub := publisher.NewMQTTPublisher(egress, topics, cfg.MqttOptions.QoS, cfg.MqttOptions.PublishTimeout)

	// 3. Core domain service
	svc := service.New(cfg.ServiceConfig(), repo, c, pub, settings.NewStatic(cfg.SettingsOptions))

	// 4. Ingress servers and background collectors
	pool := partition.New(cfg.PoolOptions())
	mqttSrv := mqttserver.NewServer(ingress, topics, cfg.MqttOptions.SharedGroup, cfg.MqttOptions.QoS, pool, svc)
	httpSrv := httpserver.NewServer(cfg.HttpOptions,
		httpserver.Check{Name: "store", Check: repo.Ping},
		httpserver.Check{Name: "cache", Check: c.Ping},
		httpserver.Check{Name: "broker", Check: connected(ingress.IsConnected)},
		httpserver.Check{Name: "egress", Check: connected(egress.IsConnected)},
	)
	gc := NewExpiryCollector(repo.Expiry(), cfg.ProcessorOptions.GCInterval, cfg.ProcessorOptions.ExpiryRetention,
		nil, log.WithName("processor").Logr())

	return &Processor{
		manager: server.NewManager(mqttSrv, httpSrv, gc),
		repo:    repo,
		cache:   c,
		egress:  egress,
	}, nil
}

func connected(isConnected func() bool) func(context.Context) error {
	return func(context.Context) error {
		if !isConnected() {
			return fmt.Errorf("not connected")
		}
		return nil
	}
}
