package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/fiorcode/eth-kipu-auction/auction"
)

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Subscription is registered before the upgrade handler blocks in
	// its read loop, but give it a moment to settle.
	require.Eventually(t, func() bool {
		return hub.Subscribers() == 1
	}, time.Second, 10*time.Millisecond)

	sent := auction.Event{
		ID:     "ev-1",
		Kind:   auction.EventNewBid,
		Bidder: "alice",
		Amount: 105,
		At:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	hub.Publish(sent)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got auction.Event
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Equal(t, sent.ID, got.ID)
	require.Equal(t, sent.Kind, got.Kind)
	require.Equal(t, sent.Bidder, got.Bidder)
	require.Equal(t, sent.Amount, got.Amount)
}

func TestHubPingEvictsDeadConnections(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.pingInterval = 5 * time.Millisecond
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.Subscribers() == 1
	}, time.Second, 10*time.Millisecond)

	// Kill the transport without a close handshake; the keepalive ping
	// must evict the subscriber.
	conn.UnderlyingConn().Close()

	require.Eventually(t, func() bool {
		return hub.Subscribers() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHubEvictsClosedConnections(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.Subscribers() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.Subscribers() == 0
	}, time.Second, 10*time.Millisecond)
}
