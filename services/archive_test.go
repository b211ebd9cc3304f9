package services

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fiorcode/eth-kipu-auction/auction"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInMemoryArchive(t *testing.T) {
	archive := NewInMemoryArchive()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, archive.SaveBid(&BidRecord{ID: "b1", Bidder: "alice", Amount: 105, PlacedAt: at}))
	require.NoError(t, archive.SaveBid(&BidRecord{ID: "b2", Bidder: "bob", Amount: 111, PlacedAt: at.Add(time.Minute)}))
	require.NoError(t, archive.SavePayout(&PayoutRecord{ID: "p1", Recipient: "alice", Amount: 103, Kind: "refund", PaidAt: at.Add(time.Hour)}))

	bids, err := archive.LoadBids()
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "alice", bids[0].Bidder)
	require.Equal(t, uint64(105), bids[0].Amount)

	payouts, err := archive.LoadPayouts()
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	require.Equal(t, "refund", payouts[0].Kind)

	require.NoError(t, archive.Close())
}

func TestRecorderArchivesLedgerEvents(t *testing.T) {
	archive := NewInMemoryArchive()
	recorder := NewRecorder(archive, testLogger())

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger, err := auction.NewLedger("owner", auction.DefaultConfig(), acceptAllTreasury{}, recorder, start)
	require.NoError(t, err)

	require.NoError(t, ledger.PlaceBid("alice", 105, start))
	require.NoError(t, ledger.PlaceBid("bob", 111, start.Add(time.Minute)))
	_, err = ledger.Withdraw("alice", start.Add(2*time.Minute))
	require.NoError(t, err)
	require.NoError(t, ledger.Close("owner", start.Add(time.Hour)))

	bids, err := archive.LoadBids()
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "alice", bids[0].Bidder)
	require.Equal(t, uint64(105), bids[0].Amount)
	require.Equal(t, "bob", bids[1].Bidder)
	require.NotEmpty(t, bids[0].ID)
	require.NotEqual(t, bids[0].ID, bids[1].ID)

	payouts, err := archive.LoadPayouts()
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	require.Equal(t, "alice", payouts[0].Recipient)
	require.Equal(t, uint64(105), payouts[0].Amount)
	require.Equal(t, auction.PayoutWithdrawal, payouts[0].Kind)
}

func TestRecorderToleratesArchiveFailure(t *testing.T) {
	recorder := NewRecorder(failingArchive{}, testLogger())

	// Must not panic or propagate; the auction keeps running when the
	// audit trail is down.
	recorder.Publish(auction.Event{ID: "b1", Kind: auction.EventNewBid, Bidder: "alice", Amount: 105})
	recorder.Publish(auction.Event{ID: "p1", Kind: auction.EventBidsRetrieve, Bidder: "alice", Amount: 105})
}

func TestPostgresConfigConnectionString(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "auction",
		Password: "secret",
		Database: "auctiondb",
	}
	require.Equal(t,
		"host=localhost port=5432 user=auction password=secret dbname=auctiondb sslmode=disable",
		cfg.ConnectionString())

	cfg.SSLMode = "require"
	require.Contains(t, cfg.ConnectionString(), "sslmode=require")
}

type acceptAllTreasury struct{}

func (acceptAllTreasury) Transfer(auction.Principal, uint64) error { return nil }

type failingArchive struct{}

func (failingArchive) SaveBid(*BidRecord) error            { return errors.New("archive down") }
func (failingArchive) SavePayout(*PayoutRecord) error      { return errors.New("archive down") }
func (failingArchive) LoadBids() ([]*BidRecord, error)     { return nil, errors.New("archive down") }
func (failingArchive) LoadPayouts() ([]*PayoutRecord, error) {
	return nil, errors.New("archive down")
}
func (failingArchive) Close() error { return nil }
