package ingress

import (
	"sync"
	"time"

	"github.com/pawtrail/pushgate/internal/app/ports"
)

const (
	stateKeyPrefix = "pushgate/tenant/"

	defaultPayloadMaxBytes = 256 << 10
	minPayloadMaxBytes     = 1 << 10
	maxPayloadMaxBytes     = 256 << 10

	defaultNonceTTL = time.Hour
	minNonceTTL     = time.Minute
	maxNonceTTL     = 24 * time.Hour

	defaultRatePerMinute = 60
	minRatePerMinute     = 1
	maxRatePerMinute     = 600
)

// Limits are the admission knobs for one router. Out-of-range values
// are clamped, not rejected.
type Limits struct {
	PayloadMaxBytes int
	NonceTTL        time.Duration
	RatePerMinute   map[ports.Channel]int
	RateWindow      time.Duration
}

func (l Limits) withDefaults() Limits {
	l.PayloadMaxBytes = clampInt(l.PayloadMaxBytes, minPayloadMaxBytes, maxPayloadMaxBytes, defaultPayloadMaxBytes)
	if l.NonceTTL <= 0 {
		l.NonceTTL = defaultNonceTTL
	} else if l.NonceTTL < minNonceTTL {
		l.NonceTTL = minNonceTTL
	} else if l.NonceTTL > maxNonceTTL {
		l.NonceTTL = maxNonceTTL
	}
	if l.RateWindow <= 0 {
		l.RateWindow = time.Minute
	}
	rates := make(map[ports.Channel]int, 3)
	for _, channel := range []ports.Channel{ports.ChannelWebhook, ports.ChannelBus, ports.ChannelEntity} {
		rates[channel] = clampInt(l.RatePerMinute[channel], minRatePerMinute, maxRatePerMinute, defaultRatePerMinute)
	}
	l.RatePerMinute = rates
	return l
}

func clampInt(value, low, high, fallback int) int {
	if value <= 0 {
		return fallback
	}
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// TenantPushState bundles one tenant's admission-side runtime state:
// rate-limiter queues, replay cache and telemetry. It lives in the
// host's runtime store and is recreated from scratch whenever that
// storage is wiped or holds a foreign value.
type TenantPushState struct {
	CreatedAt time.Time

	// mu guards every field below. Go schedules goroutines
	// preemptively, so the replay/rate check-and-record sequences and
	// all telemetry writes take the lock.
	mu        sync.Mutex
	limiter   *rateLimiter
	replays   replayCache
	telemetry *telemetry
}

// StateStore creates tenant state on first use.
type StateStore struct {
	limits Limits

	mu sync.Mutex
}

func NewStateStore(limits Limits) *StateStore {
	return &StateStore{limits: limits.withDefaults()}
}

// GetOrCreate returns the tenant's state, building a fresh one when the
// runtime store has no usable value. Telemetry and throttling state
// reset with it; in-flight correctness is unaffected.
func (s *StateStore) GetOrCreate(runtime ports.RuntimeStore, tenantSlug string) *TenantPushState {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKeyPrefix + tenantSlug
	if value, ok := runtime.Get(key); ok {
		if state, ok := value.(*TenantPushState); ok && state != nil {
			return state
		}
	}

	state := &TenantPushState{
		CreatedAt: time.Now(),
		limiter:   newRateLimiter(s.limits.RatePerMinute, s.limits.RateWindow),
		replays:   make(replayCache),
		telemetry: newTelemetry(),
	}
	runtime.Set(key, state)
	return state
}

// Peek returns the tenant's state without creating one.
func (s *StateStore) Peek(runtime ports.RuntimeStore, tenantSlug string) (*TenantPushState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := runtime.Get(stateKeyPrefix + tenantSlug)
	if !ok {
		return nil, false
	}
	state, ok := value.(*TenantPushState)
	if !ok || state == nil {
		return nil, false
	}
	return state, true
}

// MemoryRuntime is the in-process RuntimeStore used when the service
// runs standalone. Hosts embedding the pipeline supply their own.
type MemoryRuntime struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemoryRuntime() *MemoryRuntime {
	return &MemoryRuntime{values: make(map[string]any)}
}

func (m *MemoryRuntime) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok
}

func (m *MemoryRuntime) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Clear drops everything, simulating the host wiping its storage.
func (m *MemoryRuntime) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]any)
}
