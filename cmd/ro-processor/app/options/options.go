package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/remoteops/internal/processor"
	"github.com/autopeer-io/remoteops/pkg/log"
	genericoptions "github.com/autopeer-io/remoteops/pkg/options"
)

type ProcessorOptions struct {
	MqttOptions         *genericoptions.MqttOptions         `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions         *genericoptions.HttpOptions         `json:"http" mapstructure:"http"`
	DatabaseOptions     *genericoptions.DatabaseOptions     `json:"database" mapstructure:"database"`
	CacheOptions        *genericoptions.CacheOptions        `json:"cache" mapstructure:"cache"`
	ProcessorOptions    *genericoptions.ProcessorOptions    `json:"processor" mapstructure:"processor"`
	NotificationOptions *genericoptions.NotificationOptions `json:"notification" mapstructure:"notification"`
	SettingsOptions     *genericoptions.SettingsOptions     `json:"settings" mapstructure:"settings"`
	Log                 *log.Options                        `json:"log" mapstructure:"log"`
}

func NewProcessorOptions() *ProcessorOptions {
	return &ProcessorOptions{
		MqttOptions:         genericoptions.NewMqttOptions(),
		HttpOptions:         genericoptions.NewHttpOptions(),
		DatabaseOptions:     genericoptions.NewDatabaseOptions(),
		CacheOptions:        genericoptions.NewCacheOptions(),
		ProcessorOptions:    genericoptions.NewProcessorOptions(),
		NotificationOptions: genericoptions.NewNotificationOptions(),
		SettingsOptions:     genericoptions.NewSettingsOptions(),
		Log:                 log.NewOptions(),
	}
}

func (o *ProcessorOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.ProcessorOptions.AddFlags(fss.FlagSet("processor"))
	o.NotificationOptions.AddFlags(fss.FlagSet("notification"))
	o.SettingsOptions.AddFlags(fss.FlagSet("settings"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *ProcessorOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.DatabaseOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.ProcessorOptions.Validate()...)
	errs = append(errs, o.NotificationOptions.Validate()...)
	errs = append(errs, o.SettingsOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *ProcessorOptions) Config() (*processor.Config, error) {
	return &processor.Config{
		MqttOptions:         o.MqttOptions,
		HttpOptions:         o.HttpOptions,
		DatabaseOptions:     o.DatabaseOptions,
		CacheOptions:        o.CacheOptions,
		ProcessorOptions:    o.ProcessorOptions,
		NotificationOptions: o.NotificationOptions,
		SettingsOptions:     o.SettingsOptions,
	}, nil
}
