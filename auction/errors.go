package auction

import "errors"

var (
	// ErrUnauthorized is returned when the caller is the owner on a
	// bidder-only operation, or not the owner on an owner-only one.
	ErrUnauthorized = errors.New("caller not authorized for this operation")

	// ErrAuctionClosed is returned when a bidding-phase operation is
	// attempted after the deadline.
	ErrAuctionClosed = errors.New("auction is closed")

	// ErrAuctionStillOpen is returned when a settlement-phase
	// operation is attempted before the deadline has passed.
	ErrAuctionStillOpen = errors.New("auction is still open")

	// ErrInvalidAmount is returned for zero bids and bids below the
	// minimum increment over the current highest bid.
	ErrInvalidAmount = errors.New("invalid bid amount")

	// ErrNothingToWithdraw is returned when the caller has no
	// positive refundable balance.
	ErrNothingToWithdraw = errors.New("no withdrawable balance")
)
