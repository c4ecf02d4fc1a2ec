package cli

import (
	"context"
	"errors"
	"io"

	"github.com/custodia-labs/docsync/internal/adapters/driven/api"
	"github.com/custodia-labs/docsync/internal/adapters/driven/auth"
	"github.com/custodia-labs/docsync/internal/adapters/driven/health"
	"github.com/custodia-labs/docsync/internal/adapters/driven/transport/websocket"
	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/core/ports/driving"
	"github.com/custodia-labs/docsync/internal/core/services"
	"github.com/custodia-labs/docsync/internal/logger"
)

// ownedSession closes adapters the session does not own.
type ownedSession struct {
	driving.SyncSession
	closers []io.Closer
}

func (s *ownedSession) Close() error {
	errs := []error{s.SyncSession.Close()}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// newSession wires the production adapters into a services.Session.
func newSession(ctx context.Context, settings domain.Settings, metrics driven.MetricsRecorder) (driving.SyncSession, error) {
	identity := auth.FromSettings(ctx, settings.Auth)

	var closers []io.Closer
	if fp, ok := identity.(*auth.FileProvider); ok {
		if err := fp.Watch(); err != nil {
			logger.Warn("identity changes will not be detected: %v", err)
		} else {
			closers = append(closers, fp)
		}
	}

	client := api.NewClient(api.Config{BaseURL: settings.Server.BaseURL}, identity)
	sess := services.NewSession(settings, services.SessionDeps{
		Transport: websocket.NewTransport(websocket.DefaultSettings()),
		Identity:  identity,
		Prober:    health.NewProber(health.Config{BaseURL: settings.Server.BaseURL}),
		Actions:   client,
		Lister:    client,
		Metrics:   metrics,
	})
	return &ownedSession{SyncSession: sess, closers: closers}, nil
}

// newHealthChecker builds a channel-less monitor that probes over HTTP.
func newHealthChecker(settings domain.Settings) (driving.HealthChecker, func(), error) {
	if settings.Server.BaseURL == "" {
		return nil, nil, errors.New("server.base_url is not configured")
	}
	monitor := services.NewHealthMonitor(nil, health.NewProber(health.Config{BaseURL: settings.Server.BaseURL}), settings.Health, nil)
	return monitor, monitor.StopMonitoring, nil
}
