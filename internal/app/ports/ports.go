package ports

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Channel identifies the transport a push event arrived over. It is a
// closed enumeration: adapters validate at the boundary and the router
// never infers a channel from free-form input.
type Channel string

const (
	// ChannelWebhook is the HTTP webhook transport.
	ChannelWebhook Channel = "webhook"
	// ChannelBus is the CloudEvents message-bus transport.
	ChannelBus Channel = "bus"
	// ChannelEntity is the in-process state-change transport.
	ChannelEntity Channel = "entity"
)

// ParseChannel maps a free-form string onto the closed channel enum.
func ParseChannel(value string) (Channel, bool) {
	switch Channel(strings.ToLower(strings.TrimSpace(value))) {
	case ChannelWebhook:
		return ChannelWebhook, true
	case ChannelBus:
		return ChannelBus, true
	case ChannelEntity:
		return ChannelEntity, true
	default:
		return "", false
	}
}

// Valid reports whether the channel is one of the closed enum values.
func (c Channel) Valid() bool {
	switch c {
	case ChannelWebhook, ChannelBus, ChannelEntity:
		return true
	default:
		return false
	}
}

func (c Channel) String() string {
	return string(c)
}

// TenantRecord is one configured integration instance.
type TenantRecord struct {
	ID            int64
	Slug          string
	Name          string
	AuthToken     string
	WebhookSecret string
	Enabled       bool
}

// EntityRecord describes a tracked entity and the single channel that is
// allowed to report its location.
type EntityRecord struct {
	TenantSlug string
	EntityID   string
	Channel    Channel
	Label      string
}

// Point is a normalized location sample handed to the location engine
// after admission.
type Point struct {
	TenantSlug string
	EntityID   string
	Latitude   float64
	Longitude  float64
	Altitude   *float64
	Accuracy   *float64
	RecordedAt time.Time
	Channel    Channel
}

var (
	// ErrTenantNotFound indicates an unknown or disabled tenant.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrEntityNotFound indicates the entity has no registry record.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrPointRejected indicates the location engine explicitly refused the point.
	ErrPointRejected = errors.New("point rejected")
	// ErrEngineUnavailable indicates a transport-level failure reaching the engine.
	ErrEngineUnavailable = errors.New("location engine unavailable")
)

// EntityRegistry is the configuration collaborator used for the
// authorization check.
type EntityRegistry interface {
	GetEntity(ctx context.Context, tenantSlug, entityID string) (EntityRecord, error)
}

// TenantDirectory resolves tenants for transport adapters.
type TenantDirectory interface {
	GetTenantByAuthToken(ctx context.Context, token string) (TenantRecord, error)
}

// LocationEngine is the downstream consumer of accepted points.
type LocationEngine interface {
	AddPoint(ctx context.Context, point Point) error
}

// Coordinator recomputes derived state for observers after an accepted
// push. RefreshEntity is the narrow, entity-scoped path; FullRefresh is
// the fallback when the narrow path fails.
type Coordinator interface {
	RefreshEntity(ctx context.Context, tenantSlug, entityID string) error
	FullRefresh(ctx context.Context, tenantSlug, entityID string) error
}

// RuntimeStore is the host-provided shared storage slot for per-tenant
// runtime state. The host owns it and may wipe it at any time; consumers
// must not assume a stored value survives between calls.
type RuntimeStore interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}
