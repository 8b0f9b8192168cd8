package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"

	"github.com/pawtrail/pushgate/internal/app/ports"
	"github.com/pawtrail/pushgate/internal/ingress"
	"github.com/pawtrail/pushgate/internal/observability"
)

const (
	// PushEventType is the CloudEvents type carrying a location update.
	PushEventType = "com.pawtrail.location.push"
	// TenantExtension names the tenant slug extension attribute.
	TenantExtension = "tenant"
)

// Receiver consumes location pushes from the CloudEvents bus and feeds
// them through the admission pipeline. Bus deliveries are fire-and-
// forget: rejections are logged and acknowledged, never bounced back to
// the broker.
type Receiver struct {
	tenants ports.TenantDirectory
	router  *ingress.Router
	log     *slog.Logger
}

// NewReceiver constructs the bus-side adapter.
func NewReceiver(tenants ports.TenantDirectory, router *ingress.Router, log *slog.Logger) *Receiver {
	if log == nil {
		log = slog.Default()
	}
	return &Receiver{tenants: tenants, router: router, log: log}
}

// Listen blocks receiving events on the given port and path until the
// context is canceled.
func (r *Receiver) Listen(ctx context.Context, port int, path string) error {
	protocol, err := cehttp.New(cehttp.WithPort(port), cehttp.WithPath(path))
	if err != nil {
		return fmt.Errorf("bus listener setup: %w", err)
	}
	client, err := cloudevents.NewClient(protocol)
	if err != nil {
		return fmt.Errorf("bus client setup: %w", err)
	}
	r.log.Info("bus receiver listening", "port", port, "path", path)
	return client.StartReceiver(ctx, r.Handle)
}

// Handle processes one delivery. It only errors on envelope problems
// the sender can fix by re-publishing with a corrected envelope;
// admission rejections are terminal and acknowledged.
func (r *Receiver) Handle(ctx context.Context, event cloudevents.Event) error {
	if event.Type() != PushEventType {
		r.log.Debug("ignoring event type", "type", event.Type())
		return nil
	}

	token := extensionString(event, "authtoken")
	tenantSlug := extensionString(event, TenantExtension)
	if token == "" && tenantSlug == "" {
		return fmt.Errorf("event %s carries neither %s nor authtoken extension", event.ID(), TenantExtension)
	}
	if token != "" {
		tenant, err := r.tenants.GetTenantByAuthToken(ctx, token)
		if err != nil {
			r.log.Warn("bus event rejected, tenant lookup failed", "event_id", event.ID(), "error", err)
			return nil
		}
		tenantSlug = tenant.Slug
	}

	ctx = observability.WithTenant(ctx, tenantSlug)
	decoded := ingress.DecodeJSON(event.Data(), ports.ChannelBus)
	if decoded.Nonce == "" {
		// The broker-assigned event id doubles as the replay nonce so
		// redeliveries of the same event are suppressed.
		decoded.Nonce = event.ID()
	}

	result := r.router.Process(ctx, tenantSlug, decoded)
	if !result.Accepted {
		r.log.Warn("bus push rejected",
			"event_id", event.ID(),
			"tenant", tenantSlug,
			"entity_id", decoded.EntityID,
			"error_kind", result.ErrorKind)
	}
	return nil
}

func extensionString(event cloudevents.Event, name string) string {
	value, ok := event.Extensions()[name]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}
