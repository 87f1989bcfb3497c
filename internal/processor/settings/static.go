package settings

import (
	"context"
	"strings"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/pkg/options"
)

var _ core.SettingsLookup = (*Static)(nil)

// Static resolves settings from the configuration file.
type Static struct {
	callCenters map[string]string
	fallback    string
}

// NewStatic builds a lookup from opts. Origins are matched case-insensitively.
func NewStatic(opts *options.SettingsOptions) *Static {
	s := &Static{
		callCenters: make(map[string]string, len(opts.CallCenters)),
		fallback:    opts.DefaultCallCenter,
	}
	for origin, name := range opts.CallCenters {
		s.callCenters[strings.ToLower(origin)] = name
	}
	return s
}

func (s *Static) CallCenterName(_ context.Context, origin string) (string, error) {
	if name, ok := s.callCenters[strings.ToLower(origin)]; ok {
		return name, nil
	}
	return s.fallback, nil
}
