package coordinator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type capturedEvent struct {
	headers http.Header
	body    []byte
}

func newObserverServer(t *testing.T, events chan<- capturedEvent) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read observer body: %v", err)
		}
		events <- capturedEvent{headers: r.Header.Clone(), body: body}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRefreshEntityDeliversCloudEvent(t *testing.T) {
	t.Parallel()

	events := make(chan capturedEvent, 1)
	server := newObserverServer(t, events)

	publisher, err := NewPublisher(server.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	if err := publisher.RefreshEntity(context.Background(), "home", "e1"); err != nil {
		t.Fatalf("refresh entity: %v", err)
	}

	event := <-events
	if got := event.headers.Get("ce-type"); got != RefreshEventType {
		t.Fatalf("unexpected event type: got=%q want=%q", got, RefreshEventType)
	}
	if got := event.headers.Get("ce-subject"); got != "e1" {
		t.Fatalf("unexpected subject: got=%q want=%q", got, "e1")
	}
	if got := event.headers.Get("ce-tenant"); got != "home" {
		t.Fatalf("unexpected tenant extension: got=%q", got)
	}

	var payload refreshPayload
	if err := json.Unmarshal(event.body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Tenant != "home" || payload.EntityID != "e1" || payload.Scope != "entity" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestFullRefreshUsesResyncType(t *testing.T) {
	t.Parallel()

	events := make(chan capturedEvent, 1)
	server := newObserverServer(t, events)

	publisher, err := NewPublisher(server.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	if err := publisher.FullRefresh(context.Background(), "home", "e1"); err != nil {
		t.Fatalf("full refresh: %v", err)
	}

	event := <-events
	if got := event.headers.Get("ce-type"); got != ResyncEventType {
		t.Fatalf("unexpected event type: got=%q want=%q", got, ResyncEventType)
	}

	var payload refreshPayload
	if err := json.Unmarshal(event.body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Scope != "full" {
		t.Fatalf("unexpected scope: got=%q want=%q", payload.Scope, "full")
	}
}

func TestRefreshEntityReportsDeliveryFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	publisher, err := NewPublisher(server.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	if err := publisher.RefreshEntity(context.Background(), "home", "e1"); err == nil {
		t.Fatalf("expected delivery failure")
	}
}

func TestNewPublisherRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewPublisher("   ", nil); err == nil {
		t.Fatalf("expected endpoint validation error")
	}
}
