package ingress

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pawtrail/pushgate/internal/app/ports"
)

// Admission error kinds. Rejections are structured results, never errors
// thrown across the pipeline boundary.
const (
	ErrKindPayloadTooLarge       = "payload_too_large"
	ErrKindInvalidPayload        = "invalid_payload"
	ErrKindMissingEntityID       = "missing_entity_id"
	ErrKindMissingCoordinates    = "missing_coordinates"
	ErrKindCoordinateOutOfRange  = "coordinate_out_of_range"
	ErrKindUnknownEntity         = "unknown_entity"
	ErrKindSourceMismatch        = "source_mismatch"
	ErrKindReplay                = "replay"
	ErrKindRateLimited           = "rate_limited"
	ErrKindDownstreamUnavailable = "downstream_unavailable"
	ErrKindDownstreamRejected    = "downstream_rejected"
	ErrKindDownstreamFailed      = "downstream_failed"
)

var kindStatus = map[string]int{
	ErrKindPayloadTooLarge:       http.StatusRequestEntityTooLarge,
	ErrKindInvalidPayload:        http.StatusBadRequest,
	ErrKindMissingEntityID:       http.StatusBadRequest,
	ErrKindMissingCoordinates:    http.StatusBadRequest,
	ErrKindCoordinateOutOfRange:  http.StatusBadRequest,
	ErrKindUnknownEntity:         http.StatusNotFound,
	ErrKindSourceMismatch:        http.StatusConflict,
	ErrKindReplay:                http.StatusConflict,
	ErrKindRateLimited:           http.StatusTooManyRequests,
	ErrKindDownstreamUnavailable: http.StatusServiceUnavailable,
	ErrKindDownstreamRejected:    http.StatusBadRequest,
	ErrKindDownstreamFailed:      http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP-style status code. Channels
// that have no native status representation ignore it.
func StatusFor(kind string) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// PushEvent is the common decoded shape of a location update, regardless
// of which transport delivered it. Optional fields are nil when absent;
// Invalid marks payloads that were not a JSON object at all.
type PushEvent struct {
	EntityID     string
	Latitude     *float64
	Longitude    *float64
	Altitude     *float64
	Accuracy     *float64
	Timestamp    *time.Time
	Nonce        string
	Channel      ports.Channel
	RawSizeBytes int
	Invalid      bool
}

// PushResult is the admission decision for one event. EntityID is echoed
// on success for consumers that correlate responses; its absence is not
// an error.
type PushResult struct {
	Accepted   bool   `json:"accepted"`
	ErrorKind  string `json:"error_kind,omitempty"`
	StatusCode int    `json:"status_code"`
	EntityID   string `json:"entity_id,omitempty"`
}

// Rejection builds the result for a terminal rejection.
func Rejection(kind string) PushResult {
	return PushResult{Accepted: false, ErrorKind: kind, StatusCode: StatusFor(kind)}
}

// DecodeJSON decodes a raw transport payload into a PushEvent for the
// given channel. Decode problems are not reported as errors: they are
// carried in the event shape (Invalid flag, missing fields) so the
// router can classify and count them like any other rejection.
func DecodeJSON(body []byte, channel ports.Channel) PushEvent {
	event := PushEvent{Channel: channel, RawSizeBytes: len(body)}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		event.Invalid = true
		return event
	}

	if value, ok := raw["entity_id"].(string); ok {
		event.EntityID = strings.TrimSpace(value)
	}
	event.Latitude = numberField(raw, "latitude")
	event.Longitude = numberField(raw, "longitude")
	event.Altitude = numberField(raw, "altitude")
	event.Accuracy = numberField(raw, "accuracy")
	if value, ok := raw["nonce"].(string); ok {
		event.Nonce = strings.TrimSpace(value)
	}
	event.Timestamp = timestampField(raw, "timestamp")

	return event
}

// numberField extracts a JSON number. Booleans deliberately do not
// qualify even though some dynamic producers send them where a number
// belongs.
func numberField(raw map[string]any, key string) *float64 {
	value, ok := raw[key]
	if !ok {
		return nil
	}
	number, ok := value.(float64)
	if !ok {
		return nil
	}
	return &number
}

// timestampField accepts RFC 3339 strings and numeric epoch values.
// Epochs above 1e11 are treated as milliseconds, matching trackers that
// report Unix millis.
func timestampField(raw map[string]any, key string) *time.Time {
	switch value := raw[key].(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
		if err != nil {
			return nil
		}
		parsed = parsed.UTC()
		return &parsed
	case float64:
		var parsed time.Time
		if value > 1e11 {
			parsed = time.UnixMilli(int64(value)).UTC()
		} else {
			parsed = time.Unix(int64(value), 0).UTC()
		}
		return &parsed
	default:
		return nil
	}
}
