// Command bidder provides CLI tools for interacting with a running
// auction service.
//
// # Commands
//
// bid: Place a bid.
//
//	bidder bid --service=http://localhost:8080 --as=alice --amount=105
//
// withdraw: Withdraw escrowed funds.
//
//	bidder withdraw --service=http://localhost:8080 --as=alice
//
// status: Display the auction state.
//
//	bidder status --service=http://localhost:8080
//
// winner: Display the winning bid once the auction has closed.
//
//	bidder winner --service=http://localhost:8080
//
// watch: Stream auction events over the websocket feed.
//
//	bidder watch --service=http://localhost:8080
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fiorcode/eth-kipu-auction/auction"
	"github.com/fiorcode/eth-kipu-auction/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "bid":
		err = runBid(args)
	case "withdraw":
		err = runWithdraw(args)
	case "status":
		err = runStatus(args)
	case "winner":
		err = runWinner(args)
	case "watch":
		err = runWatch(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bidder - CLI tools for the auction service

Usage:
  bidder <command> [options]

Commands:
  bid       Place a bid
  withdraw  Withdraw escrowed funds
  status    Display the auction state
  winner    Display the winning bid
  watch     Stream auction events

Run 'bidder <command> --help' for command-specific options.`)
}

func newClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func runBid(args []string) error {
	fs := flag.NewFlagSet("bid", flag.ExitOnError)
	service := fs.String("service", "http://localhost:8080", "Auction service URL")
	as := fs.String("as", "", "Bidder principal (required)")
	amount := fs.Uint64("amount", 0, "Bid amount (required)")
	fs.Parse(args)

	if *as == "" {
		return fmt.Errorf("--as is required")
	}
	if *amount == 0 {
		return fmt.Errorf("--amount is required and must be > 0")
	}

	body, err := json.Marshal(&server.PlaceBidRequest{Amount: *amount})
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", *service+"/auction/bids", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(server.PrincipalHeader, *as)

	var resp server.PlaceBidResponse
	if err := doJSON(newClient(), req, &resp); err != nil {
		return err
	}

	fmt.Printf("Bid accepted: %s leads at %d\n", resp.HighestBid.Bidder, resp.HighestBid.Value)
	fmt.Printf("Auction deadline: %s\n", resp.Deadline.Format(time.RFC3339))
	return nil
}

func runWithdraw(args []string) error {
	fs := flag.NewFlagSet("withdraw", flag.ExitOnError)
	service := fs.String("service", "http://localhost:8080", "Auction service URL")
	as := fs.String("as", "", "Bidder principal (required)")
	fs.Parse(args)

	if *as == "" {
		return fmt.Errorf("--as is required")
	}

	req, err := http.NewRequest("POST", *service+"/auction/withdrawals", nil)
	if err != nil {
		return err
	}
	req.Header.Set(server.PrincipalHeader, *as)

	var resp server.WithdrawResponse
	if err := doJSON(newClient(), req, &resp); err != nil {
		return err
	}

	fmt.Printf("Withdrew %d\n", resp.Amount)
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	service := fs.String("service", "http://localhost:8080", "Auction service URL")
	fs.Parse(args)

	req, err := http.NewRequest("GET", *service+"/auction/status", nil)
	if err != nil {
		return err
	}

	var status server.StatusResponse
	if err := doJSON(newClient(), req, &status); err != nil {
		return err
	}

	state := "closed"
	if status.Open {
		state = "open"
	}
	fmt.Printf("Auction: %s (owner %s)\n", state, status.Owner)
	fmt.Printf("Deadline: %s\n", status.Deadline.Format(time.RFC3339))
	fmt.Printf("Highest bid: %d by %s\n", status.HighestBid.Value, status.HighestBid.Bidder)
	fmt.Printf("Minimum next bid: %d\n", status.MinNextBid)
	fmt.Printf("Bids: %d from %d bidders\n", status.BidCount, status.Bidders)
	if status.Commission > 0 {
		fmt.Printf("Commission accrued: %d\n", status.Commission)
	}
	return nil
}

func runWinner(args []string) error {
	fs := flag.NewFlagSet("winner", flag.ExitOnError)
	service := fs.String("service", "http://localhost:8080", "Auction service URL")
	fs.Parse(args)

	req, err := http.NewRequest("GET", *service+"/auction/winner", nil)
	if err != nil {
		return err
	}

	var winner auction.Bid
	if err := doJSON(newClient(), req, &winner); err != nil {
		return err
	}

	fmt.Printf("Winner: %s at %d\n", winner.Bidder, winner.Value)
	return nil
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	service := fs.String("service", "http://localhost:8080", "Auction service URL")
	fs.Parse(args)

	url := strings.Replace(*service, "http", "ws", 1) + "/auction/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("connecting to event feed: %w", err)
	}
	defer conn.Close()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		conn.Close()
	}()

	fmt.Println("Watching auction events (Ctrl+C to stop)...")
	for {
		var ev auction.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return nil
		}
		switch ev.Kind {
		case auction.EventNewBid:
			fmt.Printf("[%s] new bid: %s at %d, deadline %s\n",
				ev.At.Format(time.TimeOnly), ev.Bidder, ev.Amount, ev.Deadline.Format(time.RFC3339))
		case auction.EventBidsRetrieve:
			fmt.Printf("[%s] payout: %d to %s (%s)\n",
				ev.At.Format(time.TimeOnly), ev.Amount, ev.Bidder, ev.Message)
		case auction.EventAuctionFinished:
			fmt.Printf("[%s] auction finished\n", ev.At.Format(time.TimeOnly))
		default:
			fmt.Printf("[%s] %s\n", ev.At.Format(time.TimeOnly), ev.Kind)
		}
	}
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
