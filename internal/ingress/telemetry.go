package ingress

import (
	"time"

	"github.com/pawtrail/pushgate/internal/app/ports"
)

// EntityTelemetry holds accept/reject counters for one entity.
type EntityTelemetry struct {
	AcceptedTotal int        `json:"accepted_total"`
	RejectedTotal int        `json:"rejected_total"`
	LastAccepted  *time.Time `json:"last_accepted,omitempty"`
	LastRejected  *time.Time `json:"last_rejected,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// TelemetryCounters is the read-only diagnostics view of one tenant's
// admission telemetry. It is always a detached copy, safe to serialize
// and hand to callers outside the processing path.
type TelemetryCounters struct {
	AcceptedTotal int                        `json:"accepted_total"`
	RejectedTotal int                        `json:"rejected_total"`
	ByChannel     map[string]int             `json:"by_channel"`
	ByError       map[string]int             `json:"by_error"`
	PerEntity     map[string]EntityTelemetry `json:"per_entity"`
	LastAccepted  *time.Time                 `json:"last_accepted,omitempty"`
	LastRejected  *time.Time                 `json:"last_rejected,omitempty"`
	LastError     string                     `json:"last_error,omitempty"`
	LastChannel   string                     `json:"last_channel,omitempty"`
}

// telemetry is the live aggregator. Callers hold the owning tenant's
// lock; external readers only ever see Snapshot copies.
type telemetry struct {
	acceptedTotal int
	rejectedTotal int
	byChannel     map[string]int
	byError       map[string]int
	perEntity     map[string]*EntityTelemetry
	lastAccepted  *time.Time
	lastRejected  *time.Time
	lastError     string
	lastChannel   string
}

func newTelemetry() *telemetry {
	return &telemetry{
		byChannel: make(map[string]int),
		byError:   make(map[string]int),
		perEntity: make(map[string]*EntityTelemetry),
	}
}

func (t *telemetry) RecordAccept(entityID string, channel ports.Channel, now time.Time) {
	at := now
	t.acceptedTotal++
	t.byChannel[channel.String()]++
	t.lastAccepted = &at
	t.lastChannel = channel.String()

	entity := t.entity(entityID)
	if entity == nil {
		return
	}
	entity.AcceptedTotal++
	entity.LastAccepted = &at
}

func (t *telemetry) RecordReject(entityID string, channel ports.Channel, kind string, now time.Time) {
	at := now
	t.rejectedTotal++
	t.byChannel[channel.String()]++
	t.byError[kind]++
	t.lastRejected = &at
	t.lastError = kind
	t.lastChannel = channel.String()

	entity := t.entity(entityID)
	if entity == nil {
		return
	}
	entity.RejectedTotal++
	entity.LastRejected = &at
	entity.LastError = kind
}

// entity returns the per-entity slot, or nil for events whose entity id
// never validated (those are only counted globally).
func (t *telemetry) entity(entityID string) *EntityTelemetry {
	if entityID == "" {
		return nil
	}
	slot, ok := t.perEntity[entityID]
	if !ok {
		slot = &EntityTelemetry{}
		t.perEntity[entityID] = slot
	}
	return slot
}

// Snapshot returns a deep copy. Mutating the copy never touches the
// live counters.
func (t *telemetry) Snapshot() TelemetryCounters {
	snapshot := TelemetryCounters{
		AcceptedTotal: t.acceptedTotal,
		RejectedTotal: t.rejectedTotal,
		ByChannel:     make(map[string]int, len(t.byChannel)),
		ByError:       make(map[string]int, len(t.byError)),
		PerEntity:     make(map[string]EntityTelemetry, len(t.perEntity)),
		LastAccepted:  copyTime(t.lastAccepted),
		LastRejected:  copyTime(t.lastRejected),
		LastError:     t.lastError,
		LastChannel:   t.lastChannel,
	}
	for channel, count := range t.byChannel {
		snapshot.ByChannel[channel] = count
	}
	for kind, count := range t.byError {
		snapshot.ByError[kind] = count
	}
	for entityID, counters := range t.perEntity {
		entity := *counters
		entity.LastAccepted = copyTime(counters.LastAccepted)
		entity.LastRejected = copyTime(counters.LastRejected)
		snapshot.PerEntity[entityID] = entity
	}
	return snapshot
}

func copyTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
