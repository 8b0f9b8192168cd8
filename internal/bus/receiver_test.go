package bus

import (
	"context"
	"log/slog"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/pawtrail/pushgate/internal/app/ports"
	"github.com/pawtrail/pushgate/internal/ingress"
)

type stubDirectory struct {
	tenants map[string]ports.TenantRecord
}

func (s *stubDirectory) GetTenantByAuthToken(_ context.Context, token string) (ports.TenantRecord, error) {
	tenant, ok := s.tenants[token]
	if !ok {
		return ports.TenantRecord{}, ports.ErrTenantNotFound
	}
	return tenant, nil
}

type stubRegistry struct {
	entities map[string]ports.EntityRecord
}

func (s *stubRegistry) GetEntity(_ context.Context, tenantSlug, entityID string) (ports.EntityRecord, error) {
	record, ok := s.entities[tenantSlug+"/"+entityID]
	if !ok {
		return ports.EntityRecord{}, ports.ErrEntityNotFound
	}
	return record, nil
}

type stubEngine struct {
	points []ports.Point
}

func (s *stubEngine) AddPoint(_ context.Context, point ports.Point) error {
	s.points = append(s.points, point)
	return nil
}

type nopCoordinator struct{}

func (nopCoordinator) RefreshEntity(context.Context, string, string) error { return nil }
func (nopCoordinator) FullRefresh(context.Context, string, string) error   { return nil }

type busFixture struct {
	receiver *Receiver
	engine   *stubEngine
	router   *ingress.Router
}

func newBusFixture(t *testing.T) *busFixture {
	t.Helper()

	directory := &stubDirectory{tenants: map[string]ports.TenantRecord{
		"tok-home": {Slug: "home", AuthToken: "tok-home", Enabled: true},
	}}
	registry := &stubRegistry{entities: map[string]ports.EntityRecord{
		"home/tag-2":    {TenantSlug: "home", EntityID: "tag-2", Channel: ports.ChannelBus},
		"home/collar-1": {TenantSlug: "home", EntityID: "collar-1", Channel: ports.ChannelWebhook},
	}}
	engine := &stubEngine{}
	log := slog.New(slog.DiscardHandler)
	router := ingress.NewRouter(registry, engine, nopCoordinator{}, ingress.NewMemoryRuntime(), ingress.Limits{}, log)
	return &busFixture{
		receiver: NewReceiver(directory, router, log),
		engine:   engine,
		router:   router,
	}
}

func pushEvent(t *testing.T, id string, extensions map[string]string, data map[string]any) cloudevents.Event {
	t.Helper()
	event := cloudevents.NewEvent()
	event.SetID(id)
	event.SetType(PushEventType)
	event.SetSource("test/bus")
	for name, value := range extensions {
		event.SetExtension(name, value)
	}
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	return event
}

func TestHandleAcceptsBusPush(t *testing.T) {
	t.Parallel()
	fx := newBusFixture(t)

	event := pushEvent(t, "evt-1", map[string]string{TenantExtension: "home"}, map[string]any{
		"entity_id": "tag-2",
		"latitude":  54.68,
		"longitude": 25.27,
	})
	if err := fx.receiver.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(fx.engine.points) != 1 {
		t.Fatalf("engine received %d points, want 1", len(fx.engine.points))
	}
	if fx.engine.points[0].Channel != ports.ChannelBus {
		t.Errorf("point channel = %q, want bus", fx.engine.points[0].Channel)
	}
}

func TestHandleResolvesTenantFromAuthToken(t *testing.T) {
	t.Parallel()
	fx := newBusFixture(t)

	event := pushEvent(t, "evt-1", map[string]string{"authtoken": "tok-home"}, map[string]any{
		"entity_id": "tag-2",
		"latitude":  1.0,
		"longitude": 2.0,
	})
	if err := fx.receiver.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(fx.engine.points) != 1 {
		t.Fatalf("engine received %d points, want 1", len(fx.engine.points))
	}
	if fx.engine.points[0].TenantSlug != "home" {
		t.Errorf("tenant = %q, want home", fx.engine.points[0].TenantSlug)
	}
}

func TestHandleEventIDSuppliesNonce(t *testing.T) {
	t.Parallel()
	fx := newBusFixture(t)

	data := map[string]any{"entity_id": "tag-2", "latitude": 1.0, "longitude": 2.0}
	ext := map[string]string{TenantExtension: "home"}

	if err := fx.receiver.Handle(context.Background(), pushEvent(t, "evt-dup", ext, data)); err != nil {
		t.Fatalf("first Handle() error = %v", err)
	}
	if err := fx.receiver.Handle(context.Background(), pushEvent(t, "evt-dup", ext, data)); err != nil {
		t.Fatalf("redelivered Handle() error = %v", err)
	}
	if len(fx.engine.points) != 1 {
		t.Errorf("engine received %d points, want 1 after redelivery", len(fx.engine.points))
	}

	counters, ok := fx.router.TelemetrySnapshot("home")
	if !ok {
		t.Fatal("no telemetry for tenant home")
	}
	if counters.ByError["replay"] != 1 {
		t.Errorf("replay count = %d, want 1", counters.ByError["replay"])
	}
}

func TestHandleWrongChannelRejectedSilently(t *testing.T) {
	t.Parallel()
	fx := newBusFixture(t)

	event := pushEvent(t, "evt-1", map[string]string{TenantExtension: "home"}, map[string]any{
		"entity_id": "collar-1",
		"latitude":  1.0,
		"longitude": 2.0,
	})
	if err := fx.receiver.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(fx.engine.points) != 0 {
		t.Errorf("engine received %d points, want 0", len(fx.engine.points))
	}

	counters, _ := fx.router.TelemetrySnapshot("home")
	if counters.ByError["source_mismatch"] != 1 {
		t.Errorf("source_mismatch count = %d, want 1", counters.ByError["source_mismatch"])
	}
}

func TestHandleIgnoresForeignEventTypes(t *testing.T) {
	t.Parallel()
	fx := newBusFixture(t)

	event := cloudevents.NewEvent()
	event.SetID("evt-x")
	event.SetType("com.pawtrail.entity.created")
	event.SetSource("test/bus")
	if err := fx.receiver.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(fx.engine.points) != 0 {
		t.Errorf("engine received %d points, want 0", len(fx.engine.points))
	}
}

func TestHandleMissingTenantEnvelopeErrors(t *testing.T) {
	t.Parallel()
	fx := newBusFixture(t)

	event := pushEvent(t, "evt-1", nil, map[string]any{"entity_id": "tag-2"})
	if err := fx.receiver.Handle(context.Background(), event); err == nil {
		t.Fatal("Handle() error = nil, want envelope error")
	}
}
