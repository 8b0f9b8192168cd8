package ingress

import (
	"time"

	"github.com/pawtrail/pushgate/internal/app/ports"
)

type limiterKey struct {
	entityID string
	channel  ports.Channel
}

// rateLimiter throttles events per (entity, channel) key over a rolling
// window. Each call prunes timestamps that fell out of the window, so a
// pruned queue never holds more than the channel limit. Not safe for
// concurrent use on its own: callers hold the owning tenant's lock.
type rateLimiter struct {
	limits map[ports.Channel]int
	window time.Duration
	events map[limiterKey][]time.Time
}

func newRateLimiter(limits map[ports.Channel]int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limits: limits,
		window: window,
		events: make(map[limiterKey][]time.Time),
	}
}

// Allow reports whether one more event fits the window for the key, and
// records it when it does. Check-and-append happens under the caller's
// lock, preserving atomicity on preemptively scheduled runtimes.
func (l *rateLimiter) Allow(entityID string, channel ports.Channel, now time.Time) bool {
	key := limiterKey{entityID: entityID, channel: channel}
	queue := l.events[key]

	cutoff := now.Add(-l.window)
	expired := 0
	for expired < len(queue) && !queue[expired].After(cutoff) {
		expired++
	}
	if expired > 0 {
		// reallocate so the backing array does not grow without bound
		queue = append([]time.Time(nil), queue[expired:]...)
	}

	limit := l.limits[channel]
	if limit <= 0 {
		limit = defaultRatePerMinute
	}
	if len(queue) >= limit {
		l.events[key] = queue
		return false
	}

	l.events[key] = append(queue, now)
	return true
}
