// Command auctiond runs the ascending-price auction service.
//
// The service hosts a single auction: bids arrive over HTTP, escrowed
// funds can be withdrawn while the auction is open, and the owner
// settles the auction through the /admin routes once it has closed.
//
// # Endpoints
//
// Public (caller identified by the X-Auction-Principal header):
//   - POST /auction/bids - Place a bid
//   - POST /auction/withdrawals - Withdraw escrowed funds
//   - GET /auction/bids - Full bid history
//   - GET /auction/highest-bid - Current leading bid
//   - GET /auction/winner - Winning bid, once closed
//   - GET /auction/status - Auction state snapshot
//   - GET /auction/events - Websocket event feed
//   - GET /config - Auction parameters
//
// Admin (basic auth when --admin-token is set):
//   - POST /admin/close - Close the auction
//   - POST /admin/refunds - Refund losing bidders, resumable via ?start=&limit=
//   - POST /admin/proceeds - Collect the winning bid plus commission
//
// # Usage
//
//	go run ./cmd/auctiond --owner=alice --addr=:8080 --admin-token="admin:secret"
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiorcode/eth-kipu-auction/api/httpserver"
	"github.com/fiorcode/eth-kipu-auction/auction"
	"github.com/fiorcode/eth-kipu-auction/metrics"
	"github.com/fiorcode/eth-kipu-auction/realtime"
	"github.com/fiorcode/eth-kipu-auction/server"
	"github.com/fiorcode/eth-kipu-auction/services"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", ":8090", "Metrics listen address (empty disables)")
		enablePprof = flag.Bool("pprof", false, "Enable pprof debug API")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logDebug    = flag.Bool("log-debug", false, "Log at debug level")

		owner      = flag.String("owner", "", "Auction owner principal (required)")
		adminToken = flag.String("admin-token", "", "Basic auth token for admin operations (user:pass)")

		basePrice    = flag.Uint64("base-price", 100, "Starting price before the first real bid")
		duration     = flag.Duration("duration", 7*24*time.Hour, "Length of the bidding phase")
		extension    = flag.Duration("extension-window", 10*time.Minute, "Anti-sniping extension window")
		minIncrement = flag.Uint64("min-increment", 5, "Minimum bid increment in percent")
		commission   = flag.Uint64("commission", 2, "Settlement commission in percent")

		treasuryURL = flag.String("treasury-url", "", "Remote treasury endpoint (empty logs transfers)")

		pgHost     = flag.String("postgres-host", "", "PostgreSQL host (empty uses in-memory archive)")
		pgPort     = flag.Int("postgres-port", 5432, "PostgreSQL port")
		pgUser     = flag.String("postgres-user", "auction", "PostgreSQL user")
		pgPassword = flag.String("postgres-password", "", "PostgreSQL password")
		pgDatabase = flag.String("postgres-db", "auction", "PostgreSQL database")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *logDebug {
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler
	if *logJSON {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	log := slog.New(handler)

	if *owner == "" {
		fmt.Fprintln(os.Stderr, "Error: --owner is required")
		os.Exit(1)
	}

	cfg := &auction.Config{
		BasePrice:           *basePrice,
		Duration:            *duration,
		ExtensionWindow:     *extension,
		MinIncrementPercent: *minIncrement,
		CommissionPercent:   *commission,
		HouseAccount:        auction.DefaultConfig().HouseAccount,
	}

	var treasury auction.Treasury
	if *treasuryURL != "" {
		log.Info("Using remote treasury", "url", *treasuryURL)
		treasury = services.NewHTTPTreasury(*treasuryURL)
	} else {
		log.Warn("No treasury configured, transfers are logged only")
		treasury = &services.LogTreasury{Log: log}
	}

	var archive services.ArchiveStore
	if *pgHost != "" {
		pg, err := services.NewPostgresArchive(&services.PostgresConfig{
			Host:     *pgHost,
			Port:     *pgPort,
			User:     *pgUser,
			Password: *pgPassword,
			Database: *pgDatabase,
		})
		if err != nil {
			log.Error("Failed to connect to PostgreSQL", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		archive = pg
		log.Info("Using PostgreSQL archive", "host", *pgHost, "database", *pgDatabase)
	} else {
		archive = services.NewInMemoryArchive()
		log.Info("Using in-memory archive")
	}

	hub := realtime.NewHub(log)
	sink := auction.FanoutSink{services.NewRecorder(archive, log), hub}

	ledger, err := auction.NewLedger(auction.Principal(*owner), cfg, treasury, sink, time.Now())
	if err != nil {
		log.Error("Failed to create auction", "err", err)
		os.Exit(1)
	}

	auctionHandler, err := server.NewAuctionHandler(&server.HandlerConfig{
		Ledger:     ledger,
		Log:        log,
		Metrics:    metrics.NewAuctionMetrics(),
		Hub:        hub,
		AdminToken: *adminToken,
	})
	if err != nil {
		log.Error("Failed to create handler", "err", err)
		os.Exit(1)
	}

	srv, err := httpserver.New(&httpserver.Config{
		ListenAddr:               *addr,
		MetricsAddr:              *metricsAddr,
		EnablePprof:              *enablePprof,
		Log:                      log,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}, auctionHandler)
	if err != nil {
		log.Error("Failed to create server", "err", err)
		os.Exit(1)
	}

	log.With(
		"owner", *owner,
		"deadline", ledger.Deadline(),
		"basePrice", cfg.BasePrice,
	).Info("Starting auction service")
	if *adminToken == "" {
		log.Warn("No admin token configured, /admin routes rely on the owner check alone")
	}

	srv.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit

	log.Info("Shutting down auction service")
	srv.Shutdown()
}
