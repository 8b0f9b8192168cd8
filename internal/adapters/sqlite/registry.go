package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pawtrail/pushgate/internal/app/ports"
	"github.com/pawtrail/pushgate/internal/db"
	"github.com/pawtrail/pushgate/internal/observability"
)

// Registry is the sqlite-backed implementation of the entity registry
// and tenant directory ports.
type Registry struct {
	database *db.Database
}

// NewRegistry constructs a registry around the shared database.
func NewRegistry(database *db.Database) *Registry {
	return &Registry{database: database}
}

var (
	_ ports.EntityRegistry  = (*Registry)(nil)
	_ ports.TenantDirectory = (*Registry)(nil)
)

// GetEntity returns the entity's configured record, scoped by tenant.
func (r *Registry) GetEntity(ctx context.Context, tenantSlug, entityID string) (ports.EntityRecord, error) {
	ctx, span := observability.StartDBSpan(ctx, "get_entity", "select")
	defer span.End()

	row, err := r.database.GetEntityByTenantSlug(ctx, tenantSlug, entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.EntityRecord{}, ports.ErrEntityNotFound
		}
		span.RecordError(err)
		return ports.EntityRecord{}, fmt.Errorf("query entity %q: %w", entityID, err)
	}

	channel, ok := ports.ParseChannel(row.Channel)
	if !ok {
		// a registry row with a bad channel authorizes nothing
		return ports.EntityRecord{}, ports.ErrEntityNotFound
	}

	return ports.EntityRecord{
		TenantSlug: tenantSlug,
		EntityID:   row.EntityID,
		Channel:    channel,
		Label:      row.Label,
	}, nil
}

// GetTenantByAuthToken resolves an enabled tenant from its auth token.
func (r *Registry) GetTenantByAuthToken(ctx context.Context, token string) (ports.TenantRecord, error) {
	ctx, span := observability.StartDBSpan(ctx, "get_tenant_by_auth_token", "select")
	defer span.End()

	row, err := r.database.GetTenantByAuthToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.TenantRecord{}, ports.ErrTenantNotFound
		}
		span.RecordError(err)
		return ports.TenantRecord{}, fmt.Errorf("query tenant by token: %w", err)
	}
	if row.Enabled == 0 {
		return ports.TenantRecord{}, ports.ErrTenantNotFound
	}

	return ports.TenantRecord{
		ID:            row.ID,
		Slug:          row.Slug,
		Name:          row.Name,
		AuthToken:     row.AuthToken,
		WebhookSecret: row.WebhookSecret,
		Enabled:       true,
	}, nil
}
