package listener

import (
	"context"
	"log/slog"
	"time"

	"github.com/pawtrail/pushgate/internal/app/ports"
	"github.com/pawtrail/pushgate/internal/ingress"
)

// StateChange is one in-process entity update, produced by host
// components that track entity state directly instead of going through
// a network transport.
type StateChange struct {
	TenantSlug string
	EntityID   string
	Latitude   *float64
	Longitude  *float64
	Altitude   *float64
	Accuracy   *float64
	Timestamp  *time.Time
	Nonce      string
}

// Listener drains a state-change channel into the admission pipeline on
// the entity channel. Rejections are logged; the producer is never
// blocked on the outcome.
type Listener struct {
	router *ingress.Router
	log    *slog.Logger
}

// New constructs the in-process adapter.
func New(router *ingress.Router, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{router: router, log: log}
}

// Run consumes changes until the channel closes or the context is
// canceled.
func (l *Listener) Run(ctx context.Context, changes <-chan StateChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			l.Apply(ctx, change)
		}
	}
}

// Apply feeds one change through the pipeline and returns the decision.
func (l *Listener) Apply(ctx context.Context, change StateChange) ingress.PushResult {
	event := ingress.PushEvent{
		EntityID:  change.EntityID,
		Latitude:  change.Latitude,
		Longitude: change.Longitude,
		Altitude:  change.Altitude,
		Accuracy:  change.Accuracy,
		Timestamp: change.Timestamp,
		Nonce:     change.Nonce,
		Channel:   ports.ChannelEntity,
	}
	result := l.router.Process(ctx, change.TenantSlug, event)
	if !result.Accepted {
		l.log.Warn("state change rejected",
			"tenant", change.TenantSlug,
			"entity_id", change.EntityID,
			"error_kind", result.ErrorKind)
	}
	return result
}
