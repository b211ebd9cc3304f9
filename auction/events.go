package auction

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the notification type emitted by the ledger.
type EventKind string

const (
	// EventNewBid is emitted for every accepted bid.
	EventNewBid EventKind = "new_bid"

	// EventBidsRetrieve is emitted for every completed payout, both
	// self-service withdrawals and settlement refunds.
	EventBidsRetrieve EventKind = "bids_retrieve"

	// EventAuctionFinished is emitted when the owner closes the auction.
	EventAuctionFinished EventKind = "auction_finished"
)

// Payout reasons carried in Event.Message.
const (
	PayoutWithdrawal = "withdrawal"
	PayoutRefund     = "refund"
	PayoutProceeds   = "proceeds"
)

// Event is an observable ledger notification. Events are emitted after
// the state transition commits; they are not consumed internally.
type Event struct {
	ID       string    `json:"id"`
	Kind     EventKind `json:"kind"`
	Bidder   Principal `json:"bidder,omitempty"`
	Amount   uint64    `json:"amount,omitempty"`
	Message  string    `json:"message,omitempty"`
	Deadline time.Time `json:"deadline,omitempty"`
	At       time.Time `json:"at"`
}

// Sink receives ledger events. Implementations must not call back into
// the ledger's mutating operations.
type Sink interface {
	Publish(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// FanoutSink delivers every event to each wrapped sink in order.
type FanoutSink []Sink

func (s FanoutSink) Publish(ev Event) {
	for _, sink := range s {
		sink.Publish(ev)
	}
}

func newEvent(kind EventKind, at time.Time) Event {
	return Event{
		ID:   uuid.NewString(),
		Kind: kind,
		At:   at,
	}
}
