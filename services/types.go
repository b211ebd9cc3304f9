package services

import (
	"time"

	"github.com/fiorcode/eth-kipu-auction/auction"
)

// BidRecord is the archived form of an accepted bid.
type BidRecord struct {
	ID       string    `json:"id"`
	Bidder   string    `json:"bidder"`
	Amount   uint64    `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// PayoutRecord is the archived form of a completed payout: a
// self-service withdrawal, a settlement refund or the owner's proceeds.
type PayoutRecord struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Amount    uint64    `json:"amount"`
	Kind      string    `json:"kind"`
	PaidAt    time.Time `json:"paid_at"`
}

// ArchiveStore persists the auction audit trail. The archive is
// write-mostly; reads serve operational inspection, not ledger logic.
type ArchiveStore interface {
	SaveBid(*BidRecord) error
	SavePayout(*PayoutRecord) error
	LoadBids() ([]*BidRecord, error)
	LoadPayouts() ([]*PayoutRecord, error)
	Close() error
}

// BidRecordFromEvent converts a NewBid event into its archive record.
func BidRecordFromEvent(ev auction.Event) *BidRecord {
	return &BidRecord{
		ID:       ev.ID,
		Bidder:   string(ev.Bidder),
		Amount:   ev.Amount,
		PlacedAt: ev.At,
	}
}

// PayoutRecordFromEvent converts a BidsRetrieve event into its archive
// record.
func PayoutRecordFromEvent(ev auction.Event) *PayoutRecord {
	return &PayoutRecord{
		ID:        ev.ID,
		Recipient: string(ev.Bidder),
		Amount:    ev.Amount,
		Kind:      ev.Message,
		PaidAt:    ev.At,
	}
}
