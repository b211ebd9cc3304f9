package auction

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sync"
	"time"
)

// Principal is an opaque, pre-authenticated caller identity. The ledger
// only ever compares principals for equality.
type Principal string

// Bid couples a bidder with the amount they offered. Bids are immutable
// once recorded.
type Bid struct {
	Bidder Principal `json:"bidder"`
	Value  uint64    `json:"value"`
}

// Treasury is the external value-transfer collaborator. A transfer
// failure must not corrupt ledger state; the ledger restores the
// affected balance and fails the operation.
type Treasury interface {
	Transfer(to Principal, amount uint64) error
}

// Ledger is the auction state machine. All mutating operations are
// serialized; external transfers happen outside the critical section,
// strictly after the state transition committed.
type Ledger struct {
	cfg      *Config
	owner    Principal
	treasury Treasury
	sink     Sink

	mu           sync.RWMutex
	deadline     time.Time
	highest      Bid
	history      []Bid
	deposits     map[Principal]uint64
	bidders      []Principal
	known        map[Principal]struct{}
	commission   uint64
	proceedsPaid bool
}

// NewLedger creates a ledger owned by owner, with the deadline set to
// now plus the configured duration. The highest bid starts as the house
// sentinel at the base price.
func NewLedger(owner Principal, cfg *Config, treasury Treasury, sink Sink, now time.Time) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auction config: %w", err)
	}
	if owner == "" || owner == cfg.HouseAccount {
		return nil, fmt.Errorf("invalid owner principal %q", owner)
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Ledger{
		cfg:      cfg,
		owner:    owner,
		treasury: treasury,
		sink:     sink,
		deadline: now.Add(cfg.Duration),
		highest:  Bid{Bidder: cfg.HouseAccount, Value: cfg.BasePrice},
		deposits: make(map[Principal]uint64),
		known:    make(map[Principal]struct{}),
	}, nil
}

// MinNextBid returns the smallest amount the next bid must reach:
// the current highest value plus the minimum increment, rounded down.
// Near the top of the uint64 range the threshold saturates instead of
// wrapping, so a lower bid can never be admitted past a higher one.
func (l *Ledger) MinNextBid() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minNextBidLocked()
}

func (l *Ledger) minNextBidLocked() uint64 {
	hi, lo := bits.Mul64(l.highest.Value, l.cfg.MinIncrementPercent)
	if hi >= 100 {
		return math.MaxUint64
	}
	inc, _ := bits.Div64(hi, lo, 100)
	if inc > math.MaxUint64-l.highest.Value {
		return math.MaxUint64
	}
	return l.highest.Value + inc
}

// PlaceBid admits a bid from caller for amount at time now. On success
// the bid becomes the highest, the caller's escrow grows by amount, and
// the deadline is extended when the bid lands inside the anti-sniping
// window. Rejection leaves the ledger untouched.
func (l *Ledger) PlaceBid(caller Principal, amount uint64, now time.Time) error {
	l.mu.Lock()
	if now.After(l.deadline) {
		l.mu.Unlock()
		return ErrAuctionClosed
	}
	if caller == l.owner {
		l.mu.Unlock()
		return fmt.Errorf("%w: owner may not bid", ErrUnauthorized)
	}
	if amount == 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: bid must be positive", ErrInvalidAmount)
	}
	if min := l.minNextBidLocked(); amount < min {
		l.mu.Unlock()
		return fmt.Errorf("%w: bid %d below minimum %d", ErrInvalidAmount, amount, min)
	}
	if amount > math.MaxUint64-l.deposits[caller] {
		l.mu.Unlock()
		return fmt.Errorf("%w: escrow balance overflow", ErrInvalidAmount)
	}

	bid := Bid{Bidder: caller, Value: amount}
	l.history = append(l.history, bid)
	l.highest = bid
	if _, ok := l.known[caller]; !ok {
		l.known[caller] = struct{}{}
		l.bidders = append(l.bidders, caller)
	}
	l.deposits[caller] += amount
	if l.deadline.Sub(now) <= l.cfg.ExtensionWindow {
		l.deadline = now.Add(l.cfg.ExtensionWindow)
	}
	deadline := l.deadline
	l.mu.Unlock()

	ev := newEvent(EventNewBid, now)
	ev.Bidder = caller
	ev.Amount = amount
	ev.Deadline = deadline
	l.sink.Publish(ev)
	return nil
}

// Withdraw returns the caller's escrowed funds while the auction is
// open. The current highest bidder can only withdraw the surplus above
// their leading bid; the leading bid itself stays locked as the active
// offer. The balance is zeroed before the transfer and fully restored
// if the transfer fails.
func (l *Ledger) Withdraw(caller Principal, now time.Time) (uint64, error) {
	l.mu.Lock()
	if now.After(l.deadline) {
		l.mu.Unlock()
		return 0, ErrAuctionClosed
	}
	if caller == l.owner {
		l.mu.Unlock()
		return 0, fmt.Errorf("%w: owner has no escrow to withdraw", ErrUnauthorized)
	}
	balance := l.deposits[caller]
	refundable := balance
	if caller == l.highest.Bidder {
		if refundable <= l.highest.Value {
			refundable = 0
		} else {
			refundable -= l.highest.Value
		}
	}
	if refundable == 0 {
		l.mu.Unlock()
		return 0, ErrNothingToWithdraw
	}
	l.deposits[caller] = 0
	l.mu.Unlock()

	if err := l.treasury.Transfer(caller, refundable); err != nil {
		// Additive restore: the caller may have placed another bid
		// while the transfer was in flight.
		l.mu.Lock()
		l.deposits[caller] += balance
		l.mu.Unlock()
		return 0, fmt.Errorf("transfer to %s failed: %w", caller, err)
	}

	ev := newEvent(EventBidsRetrieve, now)
	ev.Bidder = caller
	ev.Amount = refundable
	ev.Message = PayoutWithdrawal
	l.sink.Publish(ev)
	return refundable, nil
}

// Close terminates the auction by pulling the deadline to now. Only the
// owner may close, at any time, including before the natural deadline.
func (l *Ledger) Close(caller Principal, now time.Time) error {
	l.mu.Lock()
	if caller != l.owner {
		l.mu.Unlock()
		return fmt.Errorf("%w: only the owner may close the auction", ErrUnauthorized)
	}
	l.deadline = now
	l.mu.Unlock()

	ev := newEvent(EventAuctionFinished, now)
	ev.Message = "auction finished"
	ev.Deadline = now
	l.sink.Publish(ev)
	return nil
}

// payout is a settlement transfer staged under the lock and executed
// outside it.
type payout struct {
	to      Principal
	net     uint64
	fee     uint64
	balance uint64
}

// RefundLosers refunds every non-winning bidder in bid-insertion order,
// deducting the settlement commission from each payout. It processes
// the full bidder set in one pass; see RefundBatch for the bounded
// variant. It returns the number of bidders paid out.
func (l *Ledger) RefundLosers(caller Principal, now time.Time) (int, error) {
	_, refunded, err := l.RefundBatch(caller, now, 0, 0)
	return refunded, err
}

// RefundBatch refunds up to limit bidders starting at index start in
// the known-bidder order, so the settlement pass can be resumed in
// bounded chunks. A limit of zero or less means "to the end". It
// returns the next cursor and the number of bidders paid out.
//
// A failed transfer restores that bidder's balance and commission
// share; remaining bidders in the batch are still processed and the
// failures are reported together.
func (l *Ledger) RefundBatch(caller Principal, now time.Time, start, limit int) (int, int, error) {
	l.mu.Lock()
	if caller != l.owner {
		l.mu.Unlock()
		return start, 0, fmt.Errorf("%w: only the owner may refund bidders", ErrUnauthorized)
	}
	if !now.After(l.deadline) {
		l.mu.Unlock()
		return start, 0, ErrAuctionStillOpen
	}
	if start < 0 {
		start = 0
	}
	if start > len(l.bidders) {
		start = len(l.bidders)
	}
	end := len(l.bidders)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var payouts []payout
	for _, p := range l.bidders[start:end] {
		balance := l.deposits[p]
		gross := balance
		if p == l.highest.Bidder {
			// The winner's offer is never refunded through this path.
			if gross <= l.highest.Value {
				continue
			}
			gross -= l.highest.Value
		}
		if gross == 0 {
			continue
		}
		fee := gross * l.cfg.CommissionPercent / 100
		l.deposits[p] = 0
		l.commission += fee
		payouts = append(payouts, payout{to: p, net: gross - fee, fee: fee, balance: balance})
	}
	next := end
	l.mu.Unlock()

	var errs []error
	refunded := 0
	for _, po := range payouts {
		if err := l.treasury.Transfer(po.to, po.net); err != nil {
			l.mu.Lock()
			l.deposits[po.to] += po.balance
			l.commission -= po.fee
			l.mu.Unlock()
			errs = append(errs, fmt.Errorf("refund to %s failed: %w", po.to, err))
			continue
		}
		refunded++
		ev := newEvent(EventBidsRetrieve, now)
		ev.Bidder = po.to
		ev.Amount = po.net
		ev.Message = PayoutRefund
		l.sink.Publish(ev)
	}
	return next, refunded, errors.Join(errs...)
}

// CollectProceeds transfers the winning bid value plus the accrued
// commission to the owner. It is available once, after the auction is
// closed, and only if a real bid was placed.
func (l *Ledger) CollectProceeds(caller Principal, now time.Time) (uint64, error) {
	l.mu.Lock()
	if caller != l.owner {
		l.mu.Unlock()
		return 0, fmt.Errorf("%w: only the owner may collect proceeds", ErrUnauthorized)
	}
	if !now.After(l.deadline) {
		l.mu.Unlock()
		return 0, ErrAuctionStillOpen
	}
	if l.proceedsPaid || len(l.history) == 0 {
		l.mu.Unlock()
		return 0, ErrNothingToWithdraw
	}
	amount := l.highest.Value + l.commission
	commission := l.commission
	l.proceedsPaid = true
	l.commission = 0
	l.mu.Unlock()

	if err := l.treasury.Transfer(l.owner, amount); err != nil {
		l.mu.Lock()
		l.proceedsPaid = false
		l.commission += commission
		l.mu.Unlock()
		return 0, fmt.Errorf("transfer to %s failed: %w", l.owner, err)
	}

	ev := newEvent(EventBidsRetrieve, now)
	ev.Bidder = l.owner
	ev.Amount = amount
	ev.Message = PayoutProceeds
	l.sink.Publish(ev)
	return amount, nil
}

// HighestBid returns the current leading bid. Before the first real bid
// this is the house sentinel at the base price.
func (l *Ledger) HighestBid() Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.highest
}

// Bids returns a snapshot of the full bid history in insertion order,
// including bids that were later superseded.
func (l *Ledger) Bids() []Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Bid, len(l.history))
	copy(out, l.history)
	return out
}

// Winner returns the highest bid once the auction has closed. Until
// then it fails with ErrAuctionStillOpen.
func (l *Ledger) Winner(now time.Time) (Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !now.After(l.deadline) {
		return Bid{}, ErrAuctionStillOpen
	}
	return l.highest, nil
}

// Deadline returns the current end time of the bidding phase.
func (l *Ledger) Deadline() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.deadline
}

// Open reports whether bids are still admitted at time now.
func (l *Ledger) Open(now time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !now.After(l.deadline)
}

// Owner returns the auction owner.
func (l *Ledger) Owner() Principal {
	return l.owner
}

// Config returns the auction parameters.
func (l *Ledger) Config() *Config {
	return l.cfg
}

// Deposit returns the escrowed balance of a principal.
func (l *Ledger) Deposit(p Principal) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.deposits[p]
}

// KnownBidders returns every principal that ever placed an accepted
// bid, in first-bid order. Principals are never removed, even after
// withdrawing in full.
func (l *Ledger) KnownBidders() []Principal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Principal, len(l.bidders))
	copy(out, l.bidders)
	return out
}

// Commission returns the settlement commission accrued so far and not
// yet collected by the owner.
func (l *Ledger) Commission() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.commission
}
