package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fiorcode/eth-kipu-auction/auction"
)

// TransferRequest is the payload posted to the remote treasury.
type TransferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// HTTPTreasury forwards value transfers to a remote treasury service.
// Any non-200 response counts as a failed transfer; the ledger handles
// the failure by restoring the affected balance.
type HTTPTreasury struct {
	URL    string
	Client *http.Client
}

// NewHTTPTreasury creates a treasury client for the given endpoint.
func NewHTTPTreasury(url string) *HTTPTreasury {
	return &HTTPTreasury{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Transfer posts the transfer to the remote treasury.
func (t *HTTPTreasury) Transfer(to auction.Principal, amount uint64) error {
	body, err := json.Marshal(&TransferRequest{To: string(to), Amount: amount})
	if err != nil {
		return fmt.Errorf("encoding transfer: %w", err)
	}

	resp, err := t.Client.Post(t.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting transfer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("treasury returned status %d", resp.StatusCode)
	}
	return nil
}

// LogTreasury records transfers in the log and always succeeds. It is
// the default when no remote treasury is configured.
type LogTreasury struct {
	Log *slog.Logger
}

// Transfer logs the transfer.
func (t *LogTreasury) Transfer(to auction.Principal, amount uint64) error {
	t.Log.Info("Value transfer", "to", to, "amount", amount)
	return nil
}
