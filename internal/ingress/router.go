package ingress

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pawtrail/pushgate/internal/app/ports"
)

// Router is the push-ingress orchestrator. It is the only component
// aware of every admission stage: size and shape validation, strict
// channel authorization, replay suppression, rate limiting, the forward
// to the location engine and the post-success refresh. Transport
// adapters decode their envelope into a PushEvent and call Process;
// they never touch tenant state directly.
type Router struct {
	registry ports.EntityRegistry
	engine   ports.LocationEngine
	coord    ports.Coordinator
	runtime  ports.RuntimeStore
	states   *StateStore
	limits   Limits
	log      *slog.Logger
	now      func() time.Time
}

// NewRouter wires the pipeline against its collaborators. Limits are
// clamped to their allowed ranges.
func NewRouter(registry ports.EntityRegistry, engine ports.LocationEngine, coord ports.Coordinator, runtime ports.RuntimeStore, limits Limits, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	limits = limits.withDefaults()
	return &Router{
		registry: registry,
		engine:   engine,
		coord:    coord,
		runtime:  runtime,
		states:   NewStateStore(limits),
		limits:   limits,
		log:      log,
		now:      time.Now,
	}
}

// Process runs one event through the admission pipeline and returns the
// decision. Exactly one telemetry record is written per call, on
// whichever path terminates. Rejections never reach the engine; engine
// and refresh failures never escape as raw errors.
func (r *Router) Process(ctx context.Context, tenantSlug string, event PushEvent) PushResult {
	state := r.states.GetOrCreate(r.runtime, tenantSlug)
	now := r.now()

	if kind := r.validate(event); kind != "" {
		return r.reject(state, event, kind, now)
	}

	record, err := r.registry.GetEntity(ctx, tenantSlug, event.EntityID)
	if err != nil {
		if errors.Is(err, ports.ErrEntityNotFound) {
			return r.reject(state, event, ErrKindUnknownEntity, now)
		}
		r.log.Error("entity registry lookup failed", "tenant", tenantSlug, "entity_id", event.EntityID, "error", err)
		return r.reject(state, event, ErrKindDownstreamUnavailable, now)
	}
	// Strict equality: an entity configured for one channel never
	// accepts another, however valid the payload.
	if record.Channel != event.Channel {
		return r.reject(state, event, ErrKindSourceMismatch, now)
	}

	// Replay and rate checks mutate state and must stay atomic per
	// tenant, so both run under one critical section.
	state.mu.Lock()
	if event.Nonce != "" && state.replays.Seen(event.Nonce, r.limits.NonceTTL, now) {
		state.mu.Unlock()
		return r.reject(state, event, ErrKindReplay, now)
	}
	if !state.limiter.Allow(event.EntityID, event.Channel, now) {
		state.mu.Unlock()
		return r.reject(state, event, ErrKindRateLimited, now)
	}
	state.mu.Unlock()

	if err := r.engine.AddPoint(ctx, normalizePoint(tenantSlug, event, now)); err != nil {
		kind := classifyEngineError(err)
		r.log.Error("location engine rejected forward", "tenant", tenantSlug, "entity_id", event.EntityID, "error_kind", kind, "error", err)
		return r.reject(state, event, kind, now)
	}

	// The push is accepted at this point. A refresh hiccup degrades to
	// a full refresh and never flips the result.
	r.refresh(ctx, tenantSlug, event.EntityID)

	state.mu.Lock()
	state.telemetry.RecordAccept(event.EntityID, event.Channel, now)
	state.mu.Unlock()
	return PushResult{Accepted: true, StatusCode: 200, EntityID: event.EntityID}
}

// TelemetrySnapshot returns a detached copy of the tenant's counters,
// or false when the tenant has processed no events yet.
func (r *Router) TelemetrySnapshot(tenantSlug string) (TelemetryCounters, bool) {
	state, ok := r.states.Peek(r.runtime, tenantSlug)
	if !ok {
		return TelemetryCounters{}, false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.telemetry.Snapshot(), true
}

// validate covers the size, shape and coordinate checks. It returns the
// error kind of the first failing check, or "" when the event passes.
func (r *Router) validate(event PushEvent) string {
	if event.RawSizeBytes > 0 && event.RawSizeBytes > r.limits.PayloadMaxBytes {
		return ErrKindPayloadTooLarge
	}
	if event.Invalid || !event.Channel.Valid() {
		return ErrKindInvalidPayload
	}
	if event.EntityID == "" {
		return ErrKindMissingEntityID
	}
	if event.Latitude == nil || event.Longitude == nil {
		return ErrKindMissingCoordinates
	}
	if *event.Latitude < -90 || *event.Latitude > 90 || *event.Longitude < -180 || *event.Longitude > 180 {
		return ErrKindCoordinateOutOfRange
	}
	return ""
}

func (r *Router) reject(state *TenantPushState, event PushEvent, kind string, now time.Time) PushResult {
	state.mu.Lock()
	state.telemetry.RecordReject(event.EntityID, event.Channel, kind, now)
	state.mu.Unlock()
	return Rejection(kind)
}

func (r *Router) refresh(ctx context.Context, tenantSlug, entityID string) {
	err := r.coord.RefreshEntity(ctx, tenantSlug, entityID)
	if err == nil {
		return
	}
	r.log.Warn("entity refresh failed, falling back to full refresh", "tenant", tenantSlug, "entity_id", entityID, "error", err)
	if err := r.coord.FullRefresh(ctx, tenantSlug, entityID); err != nil {
		r.log.Error("full refresh failed after accepted push", "tenant", tenantSlug, "entity_id", entityID, "error", err)
	}
}

func classifyEngineError(err error) string {
	switch {
	case errors.Is(err, ports.ErrPointRejected):
		return ErrKindDownstreamRejected
	case errors.Is(err, ports.ErrEngineUnavailable):
		return ErrKindDownstreamUnavailable
	default:
		return ErrKindDownstreamFailed
	}
}

func normalizePoint(tenantSlug string, event PushEvent, now time.Time) ports.Point {
	recordedAt := now
	if event.Timestamp != nil {
		recordedAt = *event.Timestamp
	}
	return ports.Point{
		TenantSlug: tenantSlug,
		EntityID:   event.EntityID,
		Latitude:   *event.Latitude,
		Longitude:  *event.Longitude,
		Altitude:   event.Altitude,
		Accuracy:   event.Accuracy,
		RecordedAt: recordedAt.UTC(),
		Channel:    event.Channel,
	}
}
