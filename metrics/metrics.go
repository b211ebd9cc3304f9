// Package metrics exposes Prometheus instrumentation for the auction
// service and a small standalone metrics HTTP server.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the Prometheus scrape endpoint on its own
// listener, separate from the API server.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given package name. An empty
// listenAddr returns a server that never listens, so callers can wire
// it unconditionally.
func New(packageName, listenAddr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         listenAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe starts serving the scrape endpoint.
func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// AuctionMetrics holds the collectors for ledger operations.
type AuctionMetrics struct {
	BidsTotal          *prometheus.CounterVec // result=accepted|rejected
	PayoutsTotal       *prometheus.CounterVec // kind=withdrawal|refund|proceeds
	HighestBid         prometheus.Gauge
	DeadlineExtensions prometheus.Counter
	EscrowedTotal      prometheus.Gauge
}

// NewAuctionMetrics creates and registers the auction collectors.
func NewAuctionMetrics() *AuctionMetrics {
	m := &AuctionMetrics{
		BidsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_bids_total",
				Help: "Total bid attempts by admission result",
			},
			[]string{"result"},
		),
		PayoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_payouts_total",
				Help: "Total completed payouts by kind",
			},
			[]string{"kind"},
		),
		HighestBid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auction_highest_bid",
			Help: "Value of the current highest bid",
		}),
		DeadlineExtensions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auction_deadline_extensions_total",
			Help: "Number of anti-sniping deadline extensions",
		}),
		EscrowedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auction_escrowed_total",
			Help: "Total value currently held in escrow",
		}),
	}

	prometheus.MustRegister(
		m.BidsTotal,
		m.PayoutsTotal,
		m.HighestBid,
		m.DeadlineExtensions,
		m.EscrowedTotal,
	)

	return m
}
