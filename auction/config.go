package auction

import (
	"fmt"
	"time"
)

// Config provides the auction parameters. All values are fixed for the
// lifetime of a ledger.
type Config struct {
	// BasePrice is the value of the sentinel bid. The first real bid
	// must be at least BasePrice plus the minimum increment over it.
	BasePrice uint64 `json:"base_price"`

	// Duration is the length of the bidding phase, measured from
	// ledger creation to the initial deadline.
	Duration time.Duration `json:"duration,string"`

	// ExtensionWindow is the anti-sniping window. A bid landing with
	// at most this much time left resets the deadline to now+window.
	ExtensionWindow time.Duration `json:"extension_window,string"`

	// MinIncrementPercent is the minimum percentage a new bid must
	// exceed the current highest bid by, rounded down.
	MinIncrementPercent uint64 `json:"min_increment_percent"`

	// CommissionPercent is deducted from losing bidders' refunds
	// during bulk refund, rounded down.
	CommissionPercent uint64 `json:"commission_percent"`

	// HouseAccount owns the sentinel bid. It never places real bids.
	HouseAccount Principal `json:"house_account"`
}

// DefaultConfig returns the standard auction parameters: a week-long
// auction with a 10 minute anti-sniping window, 5% minimum increment
// and 2% settlement commission.
func DefaultConfig() *Config {
	return &Config{
		BasePrice:           100,
		Duration:            7 * 24 * time.Hour,
		ExtensionWindow:     10 * time.Minute,
		MinIncrementPercent: 5,
		CommissionPercent:   2,
		HouseAccount:        "house",
	}
}

// Validate checks the configuration for values that would make the
// ledger misbehave.
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %s", c.Duration)
	}
	if c.ExtensionWindow < 0 {
		return fmt.Errorf("extension window must not be negative, got %s", c.ExtensionWindow)
	}
	if c.MinIncrementPercent == 0 {
		return fmt.Errorf("minimum increment percent must be positive")
	}
	if c.CommissionPercent >= 100 {
		return fmt.Errorf("commission percent must be below 100, got %d", c.CommissionPercent)
	}
	if c.HouseAccount == "" {
		return fmt.Errorf("house account must be set")
	}
	return nil
}
