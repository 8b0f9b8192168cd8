package db

import (
	"context"
	"database/sql"
)

// Tenant is one registered integration instance row.
type Tenant struct {
	ID            int64
	Slug          string
	Name          string
	AuthToken     string
	WebhookSecret string
	Enabled       int64
}

// Entity is one tracked-entity configuration row.
type Entity struct {
	ID       int64
	TenantID int64
	EntityID string
	Channel  string
	Label    string
}

// TrackPoint is one stored location sample row.
type TrackPoint struct {
	ID         int64
	TenantID   int64
	EntityID   string
	Latitude   float64
	Longitude  float64
	Altitude   sql.NullFloat64
	Accuracy   sql.NullFloat64
	Channel    string
	RecordedAt string
}

// CreateTenantParams configures tenant creation.
type CreateTenantParams struct {
	Slug          string
	Name          string
	AuthToken     string
	WebhookSecret string
	Enabled       int64
}

// CreateTenant inserts a new tenant.
func (d *Database) CreateTenant(ctx context.Context, params CreateTenantParams) (Tenant, error) {
	row := d.db.QueryRowContext(ctx,
		`INSERT INTO tenants (slug, name, auth_token, webhook_secret, enabled)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id, slug, name, auth_token, webhook_secret, enabled`,
		params.Slug, params.Name, params.AuthToken, params.WebhookSecret, params.Enabled)
	return scanTenant(row)
}

// GetTenantByAuthToken fetches a tenant by its transport auth token.
func (d *Database) GetTenantByAuthToken(ctx context.Context, token string) (Tenant, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, slug, name, auth_token, webhook_secret, enabled FROM tenants WHERE auth_token = ?`, token)
	return scanTenant(row)
}

// GetTenantBySlug fetches a tenant by slug.
func (d *Database) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, slug, name, auth_token, webhook_secret, enabled FROM tenants WHERE slug = ?`, slug)
	return scanTenant(row)
}

// CreateEntityParams configures entity creation.
type CreateEntityParams struct {
	TenantID int64
	EntityID string
	Channel  string
	Label    string
}

// CreateEntity inserts a tracked entity for a tenant.
func (d *Database) CreateEntity(ctx context.Context, params CreateEntityParams) (Entity, error) {
	row := d.db.QueryRowContext(ctx,
		`INSERT INTO entities (tenant_id, entity_id, channel, label)
		 VALUES (?, ?, ?, ?)
		 RETURNING id, tenant_id, entity_id, channel, label`,
		params.TenantID, params.EntityID, params.Channel, params.Label)
	return scanEntity(row)
}

// GetEntityByTenantSlug fetches an entity record scoped by tenant slug.
func (d *Database) GetEntityByTenantSlug(ctx context.Context, tenantSlug, entityID string) (Entity, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT e.id, e.tenant_id, e.entity_id, e.channel, e.label
		 FROM entities e
		 JOIN tenants t ON t.id = e.tenant_id
		 WHERE t.slug = ? AND e.entity_id = ?`,
		tenantSlug, entityID)
	return scanEntity(row)
}

// ListEntities returns all entities configured for a tenant.
func (d *Database) ListEntities(ctx context.Context, tenantID int64) ([]Entity, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, tenant_id, entity_id, channel, label FROM entities WHERE tenant_id = ? ORDER BY entity_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var entity Entity
		if err := rows.Scan(&entity.ID, &entity.TenantID, &entity.EntityID, &entity.Channel, &entity.Label); err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// InsertTrackPointParams configures one track point insert.
type InsertTrackPointParams struct {
	TenantID   int64
	EntityID   string
	Latitude   float64
	Longitude  float64
	Altitude   sql.NullFloat64
	Accuracy   sql.NullFloat64
	Channel    string
	RecordedAt string
}

// InsertTrackPoint appends a location sample.
func (d *Database) InsertTrackPoint(ctx context.Context, params InsertTrackPointParams) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO track_points (tenant_id, entity_id, latitude, longitude, altitude, accuracy, channel, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		params.TenantID, params.EntityID, params.Latitude, params.Longitude,
		params.Altitude, params.Accuracy, params.Channel, params.RecordedAt)
	return err
}

// UpsertLastSeen records the most recent position for an entity.
func (d *Database) UpsertLastSeen(ctx context.Context, params InsertTrackPointParams) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO entity_last_seen (tenant_id, entity_id, latitude, longitude, channel, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, entity_id) DO UPDATE SET
		   latitude = excluded.latitude,
		   longitude = excluded.longitude,
		   channel = excluded.channel,
		   recorded_at = excluded.recorded_at`,
		params.TenantID, params.EntityID, params.Latitude, params.Longitude,
		params.Channel, params.RecordedAt)
	return err
}

// CountTrackPoints returns the number of stored samples for a tenant.
func (d *Database) CountTrackPoints(ctx context.Context, tenantID int64) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM track_points WHERE tenant_id = ?`, tenantID).Scan(&count)
	return count, err
}

// GetLastSeen returns the most recent recorded position for an entity.
func (d *Database) GetLastSeen(ctx context.Context, tenantID int64, entityID string) (TrackPoint, error) {
	var point TrackPoint
	err := d.db.QueryRowContext(ctx,
		`SELECT tenant_id, entity_id, latitude, longitude, channel, recorded_at
		 FROM entity_last_seen WHERE tenant_id = ? AND entity_id = ?`,
		tenantID, entityID).Scan(
		&point.TenantID, &point.EntityID, &point.Latitude, &point.Longitude, &point.Channel, &point.RecordedAt)
	return point, err
}

func scanTenant(row *sql.Row) (Tenant, error) {
	var tenant Tenant
	err := row.Scan(&tenant.ID, &tenant.Slug, &tenant.Name, &tenant.AuthToken, &tenant.WebhookSecret, &tenant.Enabled)
	return tenant, err
}

func scanEntity(row *sql.Row) (Entity, error) {
	var entity Entity
	err := row.Scan(&entity.ID, &entity.TenantID, &entity.EntityID, &entity.Channel, &entity.Label)
	return entity, err
}
