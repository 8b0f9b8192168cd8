package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/pawtrail/pushgate/internal/app/ports"
)

const (
	// RefreshEventType announces an entity-scoped recomputation.
	RefreshEventType = "com.pawtrail.location.refresh"
	// ResyncEventType asks observers for a full recomputation of the entity.
	ResyncEventType = "com.pawtrail.entity.resync"

	eventSource = "pushgate/coordinator"
)

type refreshPayload struct {
	Tenant   string `json:"tenant"`
	EntityID string `json:"entity_id"`
	Scope    string `json:"scope"`
}

// Publisher notifies derived-state observers over CloudEvents after an
// accepted push.
type Publisher struct {
	client   cloudevents.Client
	endpoint string
	log      *slog.Logger
}

// NewPublisher builds a CloudEvents publisher targeting the observer
// endpoint.
func NewPublisher(endpoint string, log *slog.Logger) (*Publisher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("observer endpoint is required")
	}
	if log == nil {
		log = slog.Default()
	}
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("create cloudevents client: %w", err)
	}
	return &Publisher{client: client, endpoint: endpoint, log: log}, nil
}

var _ ports.Coordinator = (*Publisher)(nil)

// RefreshEntity emits the narrow, entity-scoped refresh event.
func (p *Publisher) RefreshEntity(ctx context.Context, tenantSlug, entityID string) error {
	return p.send(ctx, RefreshEventType, "entity", tenantSlug, entityID)
}

// FullRefresh emits the full recomputation event used as a fallback.
func (p *Publisher) FullRefresh(ctx context.Context, tenantSlug, entityID string) error {
	return p.send(ctx, ResyncEventType, "full", tenantSlug, entityID)
}

func (p *Publisher) send(ctx context.Context, eventType, scope, tenantSlug, entityID string) error {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetType(eventType)
	event.SetSource(eventSource)
	event.SetSubject(entityID)
	event.SetExtension("tenant", tenantSlug)
	if err := event.SetData(cloudevents.ApplicationJSON, refreshPayload{
		Tenant:   tenantSlug,
		EntityID: entityID,
		Scope:    scope,
	}); err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	ctx = cloudevents.ContextWithTarget(ctx, p.endpoint)
	if result := p.client.Send(ctx, event); cloudevents.IsUndelivered(result) {
		return fmt.Errorf("deliver %s for %s/%s: %w", eventType, tenantSlug, entityID, result)
	}
	return nil
}

// Nop is the coordinator used when no observer endpoint is configured.
type Nop struct{}

var _ ports.Coordinator = Nop{}

func (Nop) RefreshEntity(context.Context, string, string) error { return nil }
func (Nop) FullRefresh(context.Context, string, string) error   { return nil }
