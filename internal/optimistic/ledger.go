// Package optimistic tracks short-lived local reaction deltas so a client
// can show toggles instantly and reconcile against authoritative counts
// once the server responds.
package optimistic

import (
	"sync"
	"time"
)

// DefaultSettleWindow is how long a pending delta stays applied before it
// expires and the authoritative count wins.
const DefaultSettleWindow = 800 * time.Millisecond

type entry struct {
	delta     int
	expiresAt time.Time
}

// Ledger holds pending per-key deltas with an expiry. Keys are typically
// contentID + reaction type. Deltas expire after the settle window so a
// lost response can never skew displayed counts for long.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewLedger creates a ledger with the given settle window. A zero or
// negative ttl falls back to DefaultSettleWindow.
func NewLedger(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultSettleWindow
	}
	return &Ledger{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Apply records a pending delta for key. Repeat applications accumulate
// (a second toggle before settle adds -1 to a pending +1, netting zero)
// and refresh the expiry.
func (l *Ledger) Apply(key string, delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.delta += delta
	e.expiresAt = l.now().Add(l.ttl)

	if e.delta == 0 {
		delete(l.entries, key)
	}
}

// Adjusted returns the authoritative count with any unexpired pending
// delta applied, floored at zero. Expired entries are dropped on read.
func (l *Ledger) Adjusted(key string, authoritative int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return authoritative
	}
	if l.now().After(e.expiresAt) {
		delete(l.entries, key)
		return authoritative
	}

	adjusted := authoritative + e.delta
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}

// Settle clears the pending delta for key after a confirmed server
// response; the authoritative count now includes it.
func (l *Ledger) Settle(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Rollback discards the pending delta for key after a failed request,
// reverting the display to the last authoritative count.
func (l *Ledger) Rollback(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Sweep drops all expired entries and returns how many were removed.
func (l *Ledger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.expiresAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Pending returns the number of unexpired pending entries.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	count := 0
	for _, e := range l.entries {
		if !now.After(e.expiresAt) {
			count++
		}
	}
	return count
}
