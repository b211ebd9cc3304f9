package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fiorcode/eth-kipu-auction/auction"
	"github.com/fiorcode/eth-kipu-auction/metrics"
	"github.com/fiorcode/eth-kipu-auction/realtime"
)

// PrincipalHeader carries the pre-authenticated caller identity.
const PrincipalHeader = "X-Auction-Principal"

// Clock supplies the current time to every time-gated ledger call.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used in production.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// HandlerConfig wires the auction handler's collaborators.
type HandlerConfig struct {
	Ledger  *auction.Ledger
	Clock   Clock
	Log     *slog.Logger
	Metrics *metrics.AuctionMetrics
	Hub     *realtime.Hub

	// AdminToken guards the /admin routes as "user:pass". Empty
	// leaves the routes open to the ledger's own owner check.
	AdminToken string
}

// AuctionHandler bridges HTTP requests to ledger operations.
type AuctionHandler struct {
	ledger  *auction.Ledger
	clock   Clock
	log     *slog.Logger
	metrics *metrics.AuctionMetrics
	hub     *realtime.Hub

	adminUser string
	adminPass string
}

// NewAuctionHandler creates the handler. Clock defaults to the system
// clock.
func NewAuctionHandler(cfg *HandlerConfig) (*AuctionHandler, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	h := &AuctionHandler{
		ledger:  cfg.Ledger,
		clock:   clock,
		log:     cfg.Log,
		metrics: cfg.Metrics,
		hub:     cfg.Hub,
	}
	if cfg.AdminToken != "" {
		user, pass, ok := strings.Cut(cfg.AdminToken, ":")
		if !ok {
			return nil, fmt.Errorf("admin token must be user:pass")
		}
		h.adminUser, h.adminPass = user, pass
	}
	return h, nil
}

// RegisterRoutes registers the auction API with the router.
func (h *AuctionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auction", func(r chi.Router) {
		r.Post("/bids", h.handlePlaceBid)
		r.Post("/withdrawals", h.handleWithdraw)
		r.Get("/bids", h.handleBids)
		r.Get("/highest-bid", h.handleHighestBid)
		r.Get("/winner", h.handleWinner)
		r.Get("/status", h.handleStatus)
		if h.hub != nil {
			r.Get("/events", h.hub.ServeHTTP)
		}
	})
	r.Get("/config", h.handleConfig)

	r.Route("/admin", func(r chi.Router) {
		if h.adminUser != "" {
			r.Use(middleware.BasicAuth("auction admin", map[string]string{h.adminUser: h.adminPass}))
		}
		r.Post("/close", h.handleClose)
		r.Post("/refunds", h.handleRefunds)
		r.Post("/proceeds", h.handleProceeds)
	})
}

// PlaceBidRequest is the body of POST /auction/bids.
type PlaceBidRequest struct {
	Amount uint64 `json:"amount"`
}

// PlaceBidResponse confirms an accepted bid.
type PlaceBidResponse struct {
	Accepted   bool        `json:"accepted"`
	HighestBid auction.Bid `json:"highest_bid"`
	Deadline   time.Time   `json:"deadline"`
}

func (h *AuctionHandler) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.principal(w, r)
	if !ok {
		return
	}

	defer r.Body.Close()
	var req PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	prevDeadline := h.ledger.Deadline()
	if err := h.ledger.PlaceBid(caller, req.Amount, h.clock.Now()); err != nil {
		h.countBid("rejected")
		h.writeLedgerError(w, err)
		return
	}
	h.countBid("accepted")
	if h.metrics != nil {
		h.metrics.HighestBid.Set(float64(h.ledger.HighestBid().Value))
		h.metrics.EscrowedTotal.Set(float64(h.escrowed()))
		if !h.ledger.Deadline().Equal(prevDeadline) {
			h.metrics.DeadlineExtensions.Inc()
		}
	}

	writeJSON(w, &PlaceBidResponse{
		Accepted:   true,
		HighestBid: h.ledger.HighestBid(),
		Deadline:   h.ledger.Deadline(),
	})
}

// WithdrawResponse reports the amount returned to the caller.
type WithdrawResponse struct {
	Amount uint64 `json:"amount"`
}

func (h *AuctionHandler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.principal(w, r)
	if !ok {
		return
	}

	amount, err := h.ledger.Withdraw(caller, h.clock.Now())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.countPayout(auction.PayoutWithdrawal)
	if h.metrics != nil {
		h.metrics.EscrowedTotal.Set(float64(h.escrowed()))
	}

	writeJSON(w, &WithdrawResponse{Amount: amount})
}

func (h *AuctionHandler) handleBids(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.ledger.Bids())
}

func (h *AuctionHandler) handleHighestBid(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.ledger.HighestBid())
}

func (h *AuctionHandler) handleWinner(w http.ResponseWriter, r *http.Request) {
	winner, err := h.ledger.Winner(h.clock.Now())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, winner)
}

// StatusResponse is the public auction state snapshot.
type StatusResponse struct {
	Owner      auction.Principal `json:"owner"`
	Open       bool              `json:"open"`
	Deadline   time.Time         `json:"deadline"`
	HighestBid auction.Bid       `json:"highest_bid"`
	MinNextBid uint64            `json:"min_next_bid"`
	BidCount   int               `json:"bid_count"`
	Bidders    int               `json:"bidders"`
	Commission uint64            `json:"commission_accrued"`
}

func (h *AuctionHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	writeJSON(w, &StatusResponse{
		Owner:      h.ledger.Owner(),
		Open:       h.ledger.Open(now),
		Deadline:   h.ledger.Deadline(),
		HighestBid: h.ledger.HighestBid(),
		MinNextBid: h.ledger.MinNextBid(),
		BidCount:   len(h.ledger.Bids()),
		Bidders:    len(h.ledger.KnownBidders()),
		Commission: h.ledger.Commission(),
	})
}

func (h *AuctionHandler) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.ledger.Config())
}

// CloseResponse confirms the auction was terminated.
type CloseResponse struct {
	Closed   bool      `json:"closed"`
	Deadline time.Time `json:"deadline"`
}

func (h *AuctionHandler) handleClose(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.principal(w, r)
	if !ok {
		return
	}

	if err := h.ledger.Close(caller, h.clock.Now()); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, &CloseResponse{Closed: true, Deadline: h.ledger.Deadline()})
}

// RefundResponse reports one settlement pass.
type RefundResponse struct {
	Next     int `json:"next"`
	Refunded int `json:"refunded"`
}

func (h *AuctionHandler) handleRefunds(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.principal(w, r)
	if !ok {
		return
	}

	start, err := queryInt(r, "start", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	next, refunded, err := h.ledger.RefundBatch(caller, h.clock.Now(), start, limit)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	for i := 0; i < refunded; i++ {
		h.countPayout(auction.PayoutRefund)
	}
	if h.metrics != nil {
		h.metrics.EscrowedTotal.Set(float64(h.escrowed()))
	}

	writeJSON(w, &RefundResponse{Next: next, Refunded: refunded})
}

// ProceedsResponse reports the owner's settlement payout.
type ProceedsResponse struct {
	Amount uint64 `json:"amount"`
}

func (h *AuctionHandler) handleProceeds(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.principal(w, r)
	if !ok {
		return
	}

	amount, err := h.ledger.CollectProceeds(caller, h.clock.Now())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.countPayout(auction.PayoutProceeds)

	writeJSON(w, &ProceedsResponse{Amount: amount})
}

func (h *AuctionHandler) principal(w http.ResponseWriter, r *http.Request) (auction.Principal, bool) {
	p := r.Header.Get(PrincipalHeader)
	if p == "" {
		http.Error(w, fmt.Sprintf("missing %s header", PrincipalHeader), http.StatusUnauthorized)
		return "", false
	}
	return auction.Principal(p), true
}

func (h *AuctionHandler) writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway // transfer failures
	switch {
	case errors.Is(err, auction.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, auction.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, auction.ErrAuctionClosed),
		errors.Is(err, auction.ErrAuctionStillOpen),
		errors.Is(err, auction.ErrNothingToWithdraw):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func (h *AuctionHandler) countBid(result string) {
	if h.metrics != nil {
		h.metrics.BidsTotal.WithLabelValues(result).Inc()
	}
}

func (h *AuctionHandler) countPayout(kind string) {
	if h.metrics != nil {
		h.metrics.PayoutsTotal.WithLabelValues(kind).Inc()
	}
}

func (h *AuctionHandler) escrowed() uint64 {
	var total uint64
	for _, p := range h.ledger.KnownBidders() {
		total += h.ledger.Deposit(p)
	}
	return total
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %w", key, err)
	}
	return v, nil
}
