package processor

import (
	"fmt"
	"os"

	"github.com/autopeer-io/remoteops/pkg/log"
	"github.com/autopeer-io/remoteops/pkg/mqtt"
	"github.com/autopeer-io/remoteops/pkg/options"
)

// InitializeMQTTClient creates the ingress client. Replicas sharing a
// subscription group still need distinct client ids, so the id defaults to
// one derived from the hostname.
func InitializeMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		cfg.ClientID = defaultClientID()
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}

	return client, nil
}

// InitializeEgressClient creates the dedicated client used for outbound events.
func InitializeEgressClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		cfg.ClientID = defaultClientID()
	}
	cfg.ClientID += "-egress"
	cfg.CleanStart = true

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt egress client")
		return nil, err
	}

	return client, nil
}

func defaultClientID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("ro-processor-%s", hostname)
}
