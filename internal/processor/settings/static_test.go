package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/remoteops/pkg/options"
)

func TestCallCenterName(t *testing.T) {
	opts := options.NewSettingsOptions()
	opts.CallCenters = map[string]string{"CallCenter-East": "east"}
	s := NewStatic(opts)

	name, err := s.CallCenterName(context.Background(), "callcenter-east")
	require.NoError(t, err)
	assert.Equal(t, "east", name)

	name, err = s.CallCenterName(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, "DEFAULT", name)
}
