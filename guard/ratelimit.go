package guard

import (
	"sync"

	"github.com/jmcleod/authlab/internal/util"
)

// RateLimiter is a fixed-window attempt counter keyed by an arbitrary
// string. A window starts at the first attempt after the previous one
// expired and admits at most maxAttempts calls until start+window.
//
// Bursts straddling a window boundary may admit up to 2*maxAttempts calls
// in a short span. Windows are never deleted.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	start int64
	count int
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]*rateWindow)}
}

// Admit records an attempt for key at now (epoch seconds). A denied attempt
// is not counted and returns a retry hint of at least one second; an
// admitted attempt returns 0.
func (rl *RateLimiter) Admit(key string, windowSeconds, maxAttempts int, now int64) (allowed bool, retryAfter int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now >= w.start+int64(windowSeconds) {
		w = &rateWindow{start: now}
		rl.windows[key] = w
	}

	if w.count >= maxAttempts {
		return false, int(max(1, w.start+int64(windowSeconds)-now))
	}
	w.count++
	return true, 0
}

// RateKey builds the counter key "bucket:ip|identity". An empty identity is
// recorded as "_" and the identity is case-folded.
func RateKey(bucket, ip, identity string) string {
	if identity == "" {
		identity = "_"
	}
	return bucket + ":" + ip + "|" + util.FoldIdentity(identity)
}
