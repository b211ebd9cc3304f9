// Package common provides shared constants for the auction service binaries.
package common

// PackageName identifies the service in metrics and logs.
const PackageName = "auctiond"

// Version is set at build time via -ldflags.
var Version = "dev"
