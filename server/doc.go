// Package server exposes the auction ledger over HTTP.
//
// Caller identity is taken from the X-Auction-Principal header, which
// the hosting environment is expected to populate after
// authentication; the ledger itself only compares principals. Owner
// operations live under /admin behind basic auth as a transport-level
// second gate, with the ledger's own owner check as the authority.
package server
