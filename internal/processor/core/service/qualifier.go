package service

import (
	"context"
	"strings"

	"github.com/autopeer-io/remoteops/internal/processor/core"
	"github.com/autopeer-io/remoteops/internal/processor/core/model"
)

const remoteInhibitPrefix = "RI_"

// qualifier selects the downstream consumer of a response. Remote-inhibit
// responses go to the call-center serving the origin.
func (s *Service) qualifier(ctx context.Context, family model.Family, origin string) (string, error) {
	if family == model.FamilyRemoteInhibit {
		name := origin
		if s.settings != nil {
			resolved, err := s.settings.CallCenterName(ctx, origin)
			if err != nil {
				return "", core.Transient(err, "resolve call center")
			}
			name = resolved
		}
		return remoteInhibitPrefix + strings.ToUpper(name), nil
	}

	if family == "" {
		return strings.ToUpper(origin), nil
	}
	return string(family) + "_" + strings.ToUpper(origin), nil
}
