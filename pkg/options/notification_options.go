package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*NotificationOptions)(nil)

// NotificationOptions holds the static response code to notification id mapping
// and the outbound sinks notifications are forwarded to.
type NotificationOptions struct {
	Mappings map[string]string `json:"mappings" mapstructure:"mappings"`
	Sinks    []string          `json:"sinks" mapstructure:"sinks"`
}

// NewNotificationOptions creates a NotificationOptions object with default parameters.
func NewNotificationOptions() *NotificationOptions {
	return &NotificationOptions{
		Mappings: map[string]string{
			"SUCCESS":                         "RO_SUCCESS",
			"FAIL":                            "RO_FAILED",
			"TIME_OUT":                        "RO_TIMED_OUT",
			"FAIL_MESSAGE_DELIVERY_TIMED_OUT": "RO_DELIVERY_TIMED_OUT",
			"FAIL_VEHICLE_NOT_CONNECTED":      "RO_VEHICLE_NOT_CONNECTED",
			"FAIL_DELIVERY_RETRIES_EXCEEDED":  "RO_DELIVERY_FAILED",
		},
		Sinks: []string{"push"},
	}
}

// Validate rejects empty mapping values and sink names.
func (o *NotificationOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	for code, id := range o.Mappings {
		if code == "" || id == "" {
			errs = append(errs, fmt.Errorf("notification mapping %q=%q must not be empty", code, id))
		}
	}
	for _, sink := range o.Sinks {
		if sink == "" {
			errs = append(errs, fmt.Errorf("notification sink names must not be empty"))
		}
	}

	return errs
}

// AddFlags adds flags related to notifications to the specified FlagSet.
func (o *NotificationOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringToStringVar(&o.Mappings, "notification.mappings", o.Mappings, "Response code to notification id mapping.")
	fs.StringSliceVar(&o.Sinks, "notification.sinks", o.Sinks, "Outbound notification sinks; empty disables notifications.")
}
