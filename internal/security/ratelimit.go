package security

import (
	"sync"
	"time"

	"termshare/internal/constants"
)

// LimiterClass separates request budgets. Ticket minting is cheaper to abuse
// (it enables WebSocket flooding) so it gets its own tighter budget,
// independent of general API traffic.
type LimiterClass int

const (
	ClassGeneral LimiterClass = iota
	ClassTicket
)

func (c LimiterClass) limit() int {
	if c == ClassTicket {
		return constants.TicketRateLimit
	}
	return constants.GeneralRateLimit
}

type rateEntry struct {
	count   int
	resetAt time.Time
}

type rateKey struct {
	key   string
	class LimiterClass
}

// RateLimiter keeps one fixed-window counter per (key, class). Entries are
// purged lazily on access and by a periodic sweep so address churn cannot
// grow the map without bound.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[rateKey]*rateEntry
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		entries: make(map[rateKey]*rateEntry),
		window:  constants.RateLimitWindow,
		now:     time.Now,
	}
	go rl.sweepLoop()
	return rl
}

// Allow records one request for key in the given class and reports whether it
// is within budget. The first request of a window sets count=1 and a reset
// deadline one window ahead.
func (rl *RateLimiter) Allow(key string, class LimiterClass) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	k := rateKey{key: key, class: class}

	entry, ok := rl.entries[k]
	if !ok || now.After(entry.resetAt) {
		rl.entries[k] = &rateEntry{count: 1, resetAt: now.Add(rl.window)}
		return true
	}

	entry.count++
	return entry.count <= class.limit()
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(constants.RateLimitWindow)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := rl.now()
		for k, entry := range rl.entries {
			if now.After(entry.resetAt) {
				delete(rl.entries, k)
			}
		}
		rl.mu.Unlock()
	}
}
