package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pawtrail/pushgate/internal/app/ports"
	"github.com/pawtrail/pushgate/internal/db"
	"github.com/pawtrail/pushgate/internal/observability"
)

// maxFutureDrift is how far ahead of the wall clock a reported sample
// may claim to be before the engine refuses it outright.
const maxFutureDrift = 24 * time.Hour

// TrackStore is the sqlite-backed location engine: it appends accepted
// samples to the track history and keeps the per-entity last-seen row
// current.
type TrackStore struct {
	database *db.Database
	now      func() time.Time
}

// NewTrackStore constructs a track store around the shared database.
func NewTrackStore(database *db.Database) *TrackStore {
	return &TrackStore{database: database, now: time.Now}
}

var _ ports.LocationEngine = (*TrackStore)(nil)

// AddPoint persists one normalized sample. A sample claiming to be
// more than a day in the future is explicitly rejected; storage
// failures surface as engine-unavailable.
func (s *TrackStore) AddPoint(ctx context.Context, point ports.Point) error {
	ctx, span := observability.StartDBSpan(ctx, "add_point", "insert")
	defer span.End()

	if point.RecordedAt.After(s.now().Add(maxFutureDrift)) {
		return fmt.Errorf("%w: sample recorded_at %s is in the future", ports.ErrPointRejected, point.RecordedAt.Format(time.RFC3339))
	}

	tenant, err := s.database.GetTenantBySlug(ctx, point.TenantSlug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: tenant %q has no storage row", ports.ErrPointRejected, point.TenantSlug)
		}
		span.RecordError(err)
		return errors.Join(ports.ErrEngineUnavailable, err)
	}

	params := db.InsertTrackPointParams{
		TenantID:   tenant.ID,
		EntityID:   point.EntityID,
		Latitude:   point.Latitude,
		Longitude:  point.Longitude,
		Altitude:   nullFloat(point.Altitude),
		Accuracy:   nullFloat(point.Accuracy),
		Channel:    point.Channel.String(),
		RecordedAt: point.RecordedAt.UTC().Format(time.RFC3339),
	}
	if err := s.database.InsertTrackPoint(ctx, params); err != nil {
		span.RecordError(err)
		return errors.Join(ports.ErrEngineUnavailable, err)
	}
	if err := s.database.UpsertLastSeen(ctx, params); err != nil {
		span.RecordError(err)
		return errors.Join(ports.ErrEngineUnavailable, err)
	}
	return nil
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}
