package gateway

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fleetlink/gt06-gateway/internal/session"
)

// Reaper is the Idle Reaper (C7): a fixed-interval scan that closes
// connections whose session has gone quiet past its timeout.
type Reaper struct {
	registry    session.Registry
	table       *ChannelTable
	interval    time.Duration
	idleTimeout time.Duration
	log         *logrus.Entry
}

// NewReaper builds a Reaper. interval is the scan period (default 60s);
// idleTimeout is how long a session may go without activity before it is
// closed. An unauthenticated connection never reaches the registry, so its
// own timeout is enforced by the handler's read deadline instead.
func NewReaper(registry session.Registry, table *ChannelTable, interval, idleTimeout time.Duration) *Reaper {
	return &Reaper{
		registry:    registry,
		table:       table,
		interval:    interval,
		idleTimeout: idleTimeout,
		log:         logrus.WithField("component", "idle_reaper"),
	}
}

// Run scans at the configured interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.idleTimeout)
	ids, err := r.registry.FindIdle(ctx, cutoff)
	if err != nil {
		r.log.WithError(err).Warn("idle scan failed, will retry next tick")
		return
	}
	for _, id := range ids {
		r.closeOne(ctx, id)
	}
}

// closeOne resolves a session id to its ChannelID and closes the owning
// handler's connection directly; the handler's own close path runs
// Registry.Delete and emits Disconnected, so the reaper never touches the
// registry beyond the read-only FindIdle scan.
func (r *Reaper) closeOne(ctx context.Context, sessionID string) {
	sess, err := r.registry.GetBySessionID(ctx, sessionID)
	if err != nil {
		return
	}
	if h, ok := r.table.Get(sess.ChannelID); ok {
		r.log.WithField("session_id", sessionID).Info("idle reaper closing connection")
		h.forceClose()
	}
}
