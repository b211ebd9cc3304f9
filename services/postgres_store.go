package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// PostgresArchive implements ArchiveStore with PostgreSQL persistence.
type PostgresArchive struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresArchive creates a new PostgreSQL-backed archive.
func NewPostgresArchive(config *PostgresConfig) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	archive := &PostgresArchive{db: db}
	if err := archive.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return archive, nil
}

func (a *PostgresArchive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS auction_bids (
		id VARCHAR(64) PRIMARY KEY,
		bidder VARCHAR(256) NOT NULL,
		amount BIGINT NOT NULL,
		placed_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS auction_payouts (
		id VARCHAR(64) PRIMARY KEY,
		recipient VARCHAR(256) NOT NULL,
		amount BIGINT NOT NULL,
		kind VARCHAR(32) NOT NULL,
		paid_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_bids_bidder ON auction_bids(bidder);
	CREATE INDEX IF NOT EXISTS idx_payouts_recipient ON auction_payouts(recipient);
	CREATE INDEX IF NOT EXISTS idx_payouts_kind ON auction_payouts(kind);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := a.db.ExecContext(ctx, schema)
	return err
}

// SaveBid persists an accepted bid.
func (a *PostgresArchive) SaveBid(rec *BidRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO auction_bids (id, bidder, amount, placed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.Bidder, int64(rec.Amount), rec.PlacedAt)
	return err
}

// SavePayout persists a completed payout.
func (a *PostgresArchive) SavePayout(rec *PayoutRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO auction_payouts (id, recipient, amount, kind, paid_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.Recipient, int64(rec.Amount), rec.Kind, rec.PaidAt)
	return err
}

// LoadBids retrieves all archived bids in placement order.
func (a *PostgresArchive) LoadBids() ([]*BidRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, bidder, amount, placed_at FROM auction_bids ORDER BY placed_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*BidRecord
	for rows.Next() {
		var (
			rec    BidRecord
			amount int64
		)
		if err := rows.Scan(&rec.ID, &rec.Bidder, &amount, &rec.PlacedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec.Amount = uint64(amount)
		result = append(result, &rec)
	}

	return result, rows.Err()
}

// LoadPayouts retrieves all archived payouts in payment order.
func (a *PostgresArchive) LoadPayouts() ([]*PayoutRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, recipient, amount, kind, paid_at FROM auction_payouts ORDER BY paid_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*PayoutRecord
	for rows.Next() {
		var (
			rec    PayoutRecord
			amount int64
		)
		if err := rows.Scan(&rec.ID, &rec.Recipient, &amount, &rec.Kind, &rec.PaidAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec.Amount = uint64(amount)
		result = append(result, &rec)
	}

	return result, rows.Err()
}

// Close closes the database connection.
func (a *PostgresArchive) Close() error {
	return a.db.Close()
}

// InMemoryArchive implements ArchiveStore for testing without a
// database.
type InMemoryArchive struct {
	mu      sync.Mutex
	bids    []*BidRecord
	payouts []*PayoutRecord
}

// NewInMemoryArchive creates an empty in-memory archive.
func NewInMemoryArchive() *InMemoryArchive {
	return &InMemoryArchive{}
}

// SaveBid stores a bid in memory.
func (a *InMemoryArchive) SaveBid(rec *BidRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bids = append(a.bids, rec)
	return nil
}

// SavePayout stores a payout in memory.
func (a *InMemoryArchive) SavePayout(rec *PayoutRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.payouts = append(a.payouts, rec)
	return nil
}

// LoadBids returns all stored bids.
func (a *InMemoryArchive) LoadBids() ([]*BidRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*BidRecord, len(a.bids))
	copy(out, a.bids)
	return out, nil
}

// LoadPayouts returns all stored payouts.
func (a *InMemoryArchive) LoadPayouts() ([]*PayoutRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*PayoutRecord, len(a.payouts))
	copy(out, a.payouts)
	return out, nil
}

// Close is a no-op for the in-memory archive.
func (a *InMemoryArchive) Close() error {
	return nil
}
