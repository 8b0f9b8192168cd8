package ingress

import (
	"testing"
	"time"
)

func TestReplayCacheRecordsFirstSeen(t *testing.T) {
	t.Parallel()

	cache := make(replayCache)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if cache.Seen("abc-1", time.Hour, now) {
		t.Fatalf("fresh nonce reported as duplicate")
	}
	if !cache.Seen("abc-1", time.Hour, now.Add(time.Second)) {
		t.Fatalf("recorded nonce not reported as duplicate")
	}
	if cache.Seen("abc-2", time.Hour, now.Add(time.Second)) {
		t.Fatalf("unrelated nonce reported as duplicate")
	}
}

func TestReplayCacheLazyPruning(t *testing.T) {
	t.Parallel()

	cache := make(replayCache)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Minute

	cache.Seen("old-1", ttl, base)
	cache.Seen("old-2", ttl, base.Add(time.Second))

	// The check itself performs the cleanup.
	if cache.Seen("fresh", ttl, base.Add(2*time.Minute)) {
		t.Fatalf("fresh nonce reported as duplicate")
	}
	if len(cache) != 1 {
		t.Fatalf("expired entries survived pruning: got=%d want=1", len(cache))
	}
	if !cache.Seen("fresh", ttl, base.Add(2*time.Minute)) {
		t.Fatalf("surviving nonce not reported as duplicate")
	}
}
