package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*SettingsOptions)(nil)

// SettingsOptions is the static settings source used for call-center name resolution.
type SettingsOptions struct {
	// CallCenters maps a request origin to its call-center name.
	CallCenters map[string]string `json:"call-centers" mapstructure:"call-centers"`

	// DefaultCallCenter is used for origins without an entry.
	DefaultCallCenter string `json:"default-call-center" mapstructure:"default-call-center"`
}

// NewSettingsOptions creates a SettingsOptions object with default parameters.
func NewSettingsOptions() *SettingsOptions {
	return &SettingsOptions{
		CallCenters:       map[string]string{},
		DefaultCallCenter: "DEFAULT",
	}
}

// Validate is a no-op; any mapping is acceptable.
func (o *SettingsOptions) Validate() []error {
	return nil
}

// AddFlags adds flags related to settings lookups to the specified FlagSet.
func (o *SettingsOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringToStringVar(&o.CallCenters, "settings.call-centers", o.CallCenters, "Origin to call-center name mapping.")
	fs.StringVar(&o.DefaultCallCenter, "settings.default-call-center", o.DefaultCallCenter, "Call-center name for origins without a mapping.")
}
