package optimistic

import (
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestLedger(ttl time.Duration) (*Ledger, *fakeClock) {
	clock := &fakeClock{current: time.Unix(1700000000, 0)}
	l := NewLedger(ttl)
	l.now = clock.now
	return l, clock
}

func TestApply_AdjustsDisplayedCount(t *testing.T) {
	l, _ := newTestLedger(DefaultSettleWindow)

	l.Apply("content-x:FIRE", 1)

	if got := l.Adjusted("content-x:FIRE", 10); got != 11 {
		t.Errorf("Expected adjusted count 11, got %d", got)
	}
	if got := l.Adjusted("content-x:LOVE", 3); got != 3 {
		t.Errorf("Expected untouched key to pass through, got %d", got)
	}
}

func TestApply_OppositeDeltasCancel(t *testing.T) {
	l, _ := newTestLedger(DefaultSettleWindow)

	// Toggle on then off before either settles.
	l.Apply("content-x:FIRE", 1)
	l.Apply("content-x:FIRE", -1)

	if got := l.Adjusted("content-x:FIRE", 10); got != 10 {
		t.Errorf("Expected cancelled deltas to net zero, got %d", got)
	}
	if l.Pending() != 0 {
		t.Errorf("Expected no pending entries, got %d", l.Pending())
	}
}

func TestAdjusted_FloorsAtZero(t *testing.T) {
	l, _ := newTestLedger(DefaultSettleWindow)

	l.Apply("content-x:FIRE", -1)

	if got := l.Adjusted("content-x:FIRE", 0); got != 0 {
		t.Errorf("Expected floor at zero, got %d", got)
	}
}

func TestAdjusted_ExpiresAfterSettleWindow(t *testing.T) {
	l, clock := newTestLedger(800 * time.Millisecond)

	l.Apply("content-x:FIRE", 1)
	clock.advance(801 * time.Millisecond)

	// Past the settle window the authoritative count wins.
	if got := l.Adjusted("content-x:FIRE", 10); got != 10 {
		t.Errorf("Expected expired delta to be ignored, got %d", got)
	}
}

func TestApply_RefreshesExpiry(t *testing.T) {
	l, clock := newTestLedger(800 * time.Millisecond)

	l.Apply("content-x:FIRE", 1)
	clock.advance(500 * time.Millisecond)
	l.Apply("content-x:FIRE", 1)
	clock.advance(500 * time.Millisecond)

	// 1000ms after the first apply but only 500ms after the second.
	if got := l.Adjusted("content-x:FIRE", 10); got != 12 {
		t.Errorf("Expected refreshed entry to still apply, got %d", got)
	}
}

func TestSettle_ClearsDelta(t *testing.T) {
	l, _ := newTestLedger(DefaultSettleWindow)

	l.Apply("content-x:FIRE", 1)
	l.Settle("content-x:FIRE")

	// Server response already includes the toggle.
	if got := l.Adjusted("content-x:FIRE", 11); got != 11 {
		t.Errorf("Expected settled count to pass through, got %d", got)
	}
}

func TestRollback_RevertsToAuthoritative(t *testing.T) {
	l, _ := newTestLedger(DefaultSettleWindow)

	l.Apply("content-x:FIRE", 1)
	l.Rollback("content-x:FIRE")

	if got := l.Adjusted("content-x:FIRE", 10); got != 10 {
		t.Errorf("Expected rollback to revert display, got %d", got)
	}
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	l, clock := newTestLedger(800 * time.Millisecond)

	l.Apply("old", 1)
	clock.advance(500 * time.Millisecond)
	l.Apply("fresh", 1)
	clock.advance(400 * time.Millisecond)

	if removed := l.Sweep(); removed != 1 {
		t.Errorf("Expected one expired entry removed, got %d", removed)
	}
	if l.Pending() != 1 {
		t.Errorf("Expected one pending entry, got %d", l.Pending())
	}
}

func TestNewLedger_DefaultsTTL(t *testing.T) {
	l := NewLedger(0)
	if l.ttl != DefaultSettleWindow {
		t.Errorf("Expected default settle window, got %v", l.ttl)
	}
}
