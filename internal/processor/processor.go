package processor

import (
	"context"
	"time"

	"github.com/autopeer-io/remoteops/internal/processor/cache"
	"github.com/autopeer-io/remoteops/internal/processor/server"
	"github.com/autopeer-io/remoteops/internal/processor/store"
	"github.com/autopeer-io/remoteops/pkg/log"
	"github.com/autopeer-io/remoteops/pkg/mqtt"
)

// egressTimeout bounds the wait for the egress connection at startup.
const egressTimeout = 30 * time.Second

// Processor is the main application struct of the remote-operations processor.
type Processor struct {
	manager *server.Manager
	repo    *store.Repository
	cache   *cache.Cache
	egress  mqtt.Client
}

// Run connects the egress client, then blocks running the ingress, probe and
// collector servers until ctx is cancelled or one of them fails.
func (p *Processor) Run(ctx context.Context) error {
	log.Info("Starting RO Processor...")

	defer func() {
		if err := p.cache.Close(); err != nil {
			log.Error(err, "Failed to close cache")
		}
		if err := p.repo.Close(); err != nil {
			log.Error(err, "Failed to close request store")
		}
	}()

	if err := p.egress.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.egress.Disconnect(shutdownCtx)
	}()

	awaitCtx, cancel := context.WithTimeout(ctx, egressTimeout)
	err := p.egress.AwaitConnection(awaitCtx)
	cancel()
	if err != nil {
		return err
	}

	return p.manager.Start(ctx)
}
