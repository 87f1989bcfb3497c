package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/remoteops/pkg/log"
)

// Server is a long running component. Start blocks until ctx is cancelled
// or the component fails.
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of the processor's servers and runnables.
type Manager struct {
	servers []Server
}

// NewManager creates a manager over servers.
func NewManager(servers ...Server) *Manager {
	return &Manager{servers: servers}
}

// Add registers another server; it must be called before Start.
func (m *Manager) Add(s Server) {
	m.servers = append(m.servers, s)
}

// Start launches all servers in parallel and waits for termination.
// The first failure cancels the others.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
