package ingress

import (
	"testing"
	"time"

	"github.com/pawtrail/pushgate/internal/app/ports"
)

func TestDecodeJSONFullPayload(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"entity_id": "e1",
		"latitude": 52.5,
		"longitude": 13.4,
		"altitude": 34.0,
		"accuracy": 5.5,
		"timestamp": "2026-08-01T12:00:00Z",
		"nonce": "abc-1"
	}`)

	event := DecodeJSON(body, ports.ChannelWebhook)
	if event.Invalid {
		t.Fatalf("valid payload flagged invalid")
	}
	if event.EntityID != "e1" || event.Nonce != "abc-1" {
		t.Fatalf("unexpected identity fields: entity=%q nonce=%q", event.EntityID, event.Nonce)
	}
	if event.Latitude == nil || *event.Latitude != 52.5 || event.Longitude == nil || *event.Longitude != 13.4 {
		t.Fatalf("coordinates not decoded: %+v", event)
	}
	if event.Altitude == nil || *event.Altitude != 34.0 || event.Accuracy == nil || *event.Accuracy != 5.5 {
		t.Fatalf("optional fields not decoded: %+v", event)
	}
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if event.Timestamp == nil || !event.Timestamp.Equal(want) {
		t.Fatalf("timestamp not parsed: got=%v want=%v", event.Timestamp, want)
	}
	if event.RawSizeBytes != len(body) {
		t.Fatalf("raw size not measured: got=%d want=%d", event.RawSizeBytes, len(body))
	}
	if event.Channel != ports.ChannelWebhook {
		t.Fatalf("channel not carried: got=%q", event.Channel)
	}
}

func TestDecodeJSONEpochTimestamps(t *testing.T) {
	t.Parallel()

	seconds := DecodeJSON([]byte(`{"entity_id":"e1","latitude":1,"longitude":2,"timestamp":1754049600}`), ports.ChannelBus)
	if seconds.Timestamp == nil || seconds.Timestamp.Unix() != 1754049600 {
		t.Fatalf("epoch seconds not parsed: %v", seconds.Timestamp)
	}

	millis := DecodeJSON([]byte(`{"entity_id":"e1","latitude":1,"longitude":2,"timestamp":1754049600000}`), ports.ChannelBus)
	if millis.Timestamp == nil || millis.Timestamp.Unix() != 1754049600 {
		t.Fatalf("epoch milliseconds not parsed: %v", millis.Timestamp)
	}
}

func TestDecodeJSONRejectsNonNumericCoordinates(t *testing.T) {
	t.Parallel()

	event := DecodeJSON([]byte(`{"entity_id":"e1","latitude":true,"longitude":"13.4"}`), ports.ChannelWebhook)
	if event.Invalid {
		t.Fatalf("object payload flagged invalid")
	}
	if event.Latitude != nil {
		t.Fatalf("boolean latitude treated as a number")
	}
	if event.Longitude != nil {
		t.Fatalf("string longitude treated as a number")
	}
}

func TestDecodeJSONMalformedPayloads(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`not json`, `[1,2,3]`, `"text"`, `null`, `42`} {
		event := DecodeJSON([]byte(body), ports.ChannelWebhook)
		if !event.Invalid {
			t.Fatalf("payload %q not flagged invalid", body)
		}
	}
}

func TestDecodeJSONNonStringEntityID(t *testing.T) {
	t.Parallel()

	event := DecodeJSON([]byte(`{"entity_id":42,"latitude":1,"longitude":2}`), ports.ChannelWebhook)
	if event.Invalid {
		t.Fatalf("object payload flagged invalid")
	}
	if event.EntityID != "" {
		t.Fatalf("numeric entity id coerced to string: %q", event.EntityID)
	}
}
