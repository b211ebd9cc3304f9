// Package services contains the supporting infrastructure around the
// auction ledger: the audit archive (PostgreSQL-backed with an
// in-memory twin for tests), the event recorder bridging ledger
// notifications into the archive, and the treasury implementations the
// ledger uses for value transfer.
package services
