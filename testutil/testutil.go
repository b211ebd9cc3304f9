// Package testutil provides test doubles for the auction service: a
// manually-advanced clock, a recording treasury and an event-collecting
// sink.
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/fiorcode/eth-kipu-auction/auction"
)

// FixedClock is a Clock whose time only moves when told to.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock returns a clock frozen at now.
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// Now returns the current frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Transfer records one value transfer attempted through the treasury.
type Transfer struct {
	To     auction.Principal
	Amount uint64
}

// RecordingTreasury records every transfer and can be told to fail for
// specific recipients.
type RecordingTreasury struct {
	mu        sync.Mutex
	transfers []Transfer
	failFor   map[auction.Principal]bool
}

// NewRecordingTreasury returns a treasury that accepts all transfers.
func NewRecordingTreasury() *RecordingTreasury {
	return &RecordingTreasury{failFor: make(map[auction.Principal]bool)}
}

// Transfer records the transfer, or fails if the recipient was marked.
func (t *RecordingTreasury) Transfer(to auction.Principal, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failFor[to] {
		return fmt.Errorf("simulated transfer failure to %s", to)
	}
	t.transfers = append(t.transfers, Transfer{To: to, Amount: amount})
	return nil
}

// FailFor makes subsequent transfers to p fail.
func (t *RecordingTreasury) FailFor(p auction.Principal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failFor[p] = true
}

// Recover makes subsequent transfers to p succeed again.
func (t *RecordingTreasury) Recover(p auction.Principal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failFor, p)
}

// Transfers returns a snapshot of all recorded transfers.
func (t *RecordingTreasury) Transfers() []Transfer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transfer, len(t.transfers))
	copy(out, t.transfers)
	return out
}

// TotalTo sums the amounts transferred to p.
func (t *RecordingTreasury) TotalTo(p auction.Principal) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total uint64
	for _, tr := range t.transfers {
		if tr.To == p {
			total += tr.Amount
		}
	}
	return total
}

// CollectingSink gathers all published events.
type CollectingSink struct {
	mu     sync.Mutex
	events []auction.Event
}

// NewCollectingSink returns an empty sink.
func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

// Publish appends the event.
func (s *CollectingSink) Publish(ev auction.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a snapshot of the collected events.
func (s *CollectingSink) Events() []auction.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auction.Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfKind returns the collected events of the given kind.
func (s *CollectingSink) OfKind(kind auction.EventKind) []auction.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auction.Event
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
