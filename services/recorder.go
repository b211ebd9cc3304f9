package services

import (
	"log/slog"

	"github.com/fiorcode/eth-kipu-auction/auction"
)

// Recorder is an event sink that writes ledger notifications into the
// archive. Archive failures are logged, never propagated: the audit
// trail must not block the auction.
type Recorder struct {
	store ArchiveStore
	log   *slog.Logger
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store ArchiveStore, log *slog.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Publish archives the event according to its kind.
func (r *Recorder) Publish(ev auction.Event) {
	switch ev.Kind {
	case auction.EventNewBid:
		if err := r.store.SaveBid(BidRecordFromEvent(ev)); err != nil {
			r.log.Error("Failed to archive bid", "err", err, "bidder", ev.Bidder)
		}
	case auction.EventBidsRetrieve:
		if err := r.store.SavePayout(PayoutRecordFromEvent(ev)); err != nil {
			r.log.Error("Failed to archive payout", "err", err, "recipient", ev.Bidder)
		}
	case auction.EventAuctionFinished:
		r.log.Info("Auction finished", "deadline", ev.Deadline)
	}
}
