// Package auction implements a single-asset ascending-price auction ledger.
//
// The ledger is a single stateful object combining deadline management,
// bid admission, highest-bid tracking, per-bidder escrow accounting and
// the two-phase fund-release protocol: self-service withdrawal while the
// auction is open, and owner-driven bulk refund after close.
//
// # Bid admission
//
// A bid is admitted only while the auction is open, only from callers
// other than the owner, and only if it exceeds the current highest bid
// by the configured minimum increment (integer arithmetic, increment
// rounded down). The highest bid is seeded with a sentinel owned by the
// house account, so the very first real bid must clear the base price.
//
// # Anti-sniping
//
// When a bid lands with at most ExtensionWindow left on the clock, the
// deadline is pulled forward to now+ExtensionWindow. Bids placed earlier
// than that never move the deadline.
//
// # Fund safety
//
// Escrow balances are zeroed before the external value transfer is
// invoked, and restored if the transfer reports failure. This closes the
// re-entrancy window between balance read and balance reset, and makes a
// failed transfer abort the operation instead of silently burning the
// recorded entitlement.
//
// The ledger does not implement identity, value transfer or time: the
// caller principal arrives pre-authenticated, transfers go through the
// Treasury interface, and every time-gated operation receives the
// current time from the caller.
package auction
