package ingress

import "time"

// replayCache maps caller-supplied nonces to the time they were first
// seen. Expiry is lazy: every check first drops entries older than the
// TTL, amortizing cleanup over real traffic instead of a background
// sweep. Callers hold the owning tenant's lock.
type replayCache map[string]time.Time

// Seen prunes expired nonces, then reports whether nonce was already
// recorded inside the TTL window. An unseen nonce is recorded as a side
// effect.
func (c replayCache) Seen(nonce string, ttl time.Duration, now time.Time) bool {
	cutoff := now.Add(-ttl)
	for key, firstSeen := range c {
		if firstSeen.Before(cutoff) {
			delete(c, key)
		}
	}

	if _, duplicate := c[nonce]; duplicate {
		return true
	}
	c[nonce] = now
	return false
}
