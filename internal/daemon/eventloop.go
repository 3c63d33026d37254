package daemon

import (
	"context"
	"time"
)

const defaultMaintenanceInterval = 30 * time.Second

// EventLoop runs periodic maintenance while the daemon is up
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon:   d,
		interval: defaultMaintenanceInterval,
	}
}

// Run runs the event loop until ctx is done
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Info().Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Info().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.processTasks()
		}
	}
}

// processTasks logs service stats for monitoring
func (e *EventLoop) processTasks() {
	clients := e.daemon.gatewayServer.Clients().GetConnectedClients()
	idle := 0
	for _, c := range clients {
		if c.Idle {
			idle++
		}
	}

	e.daemon.logger.Debug().
		Int("active_sessions", e.daemon.store.CountActive()).
		Int("ws_clients", len(clients)).
		Int("ws_idle", idle).
		Str("provider", e.daemon.model.Provider()).
		Msg("Service stats")
}
