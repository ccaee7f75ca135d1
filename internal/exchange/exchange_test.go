package exchange_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-scalper/internal/exchange"
)

func TestDialSubscribes(t *testing.T) {
	t.Parallel()

	subscribed := make(chan map[string]any, 1)
	srv := newDealServer(t, func(conn *websocket.Conn) {
		var req map[string]any
		require.NoError(t, conn.ReadJSON(&req), "Server: failed to read subscription")
		subscribed <- req
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	stream, err := exchange.Dial(t.Context(), testConfig(srv))
	require.NoError(t, err, "Dial should not fail")
	defer stream.Close()

	select {
	case req := <-subscribed:
		assert.Equal(t, map[string]any{
			"method": "sub.deal",
			"param":  map[string]any{"symbol": "SUI_USDT"},
		}, req, "Unexpected subscription request")
	case <-time.After(5 * time.Second):
		require.Fail(t, "Timed out waiting for the subscription request")
	}
}

func TestDealsAreDelivered(t *testing.T) {
	t.Parallel()

	srv := newDealServer(t, func(conn *websocket.Conn) {
		var req map[string]any
		require.NoError(t, conn.ReadJSON(&req), "Server: failed to read subscription")

		// Ack and heartbeat reply frames must be consumed silently.
		writeRaw(t, conn, `{"channel":"rs.sub.deal","data":"success"}`)
		writeRaw(t, conn, `{"channel":"pong","data":1718000000000}`)
		writeRaw(t, conn, `{"channel":"push.deal","symbol":"SUI_USDT","data":[{"p":3.5,"t":1},{"p":"3.6","t":2}]}`)
		writeRaw(t, conn, `{"channel":"push.deal","symbol":"SUI_USDT","data":[{"p":3.7,"t":3}]}`)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	stream, err := exchange.Dial(t.Context(), testConfig(srv))
	require.NoError(t, err, "Dial should not fail")
	defer stream.Close()

	var prices []float64
	for range 3 {
		select {
		case d, ok := <-stream.Deals():
			require.True(t, ok, "Deals channel closed early: %v", stream.Err())
			require.False(t, d.ReceivedAt.IsZero(), "Deals should carry a receive time")
			prices = append(prices, d.Price)
		case <-time.After(5 * time.Second):
			require.Fail(t, "Timed out waiting for deals")
		}
	}
	assert.Equal(t, []float64{3.5, 3.6, 3.7}, prices, "Unexpected deal prices")
}

func TestSubscriptionRejected(t *testing.T) {
	t.Parallel()

	srv := newDealServer(t, func(conn *websocket.Conn) {
		var req map[string]any
		require.NoError(t, conn.ReadJSON(&req), "Server: failed to read subscription")
		writeRaw(t, conn, `{"channel":"rs.error","data":"Contract not activated"}`)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	stream, err := exchange.Dial(t.Context(), testConfig(srv))
	require.NoError(t, err, "Dial should not fail")
	defer stream.Close()

	requireClosed(t, stream)
	require.ErrorIs(t, stream.Err(), exchange.ErrStreamRejected, "Err should report the rejection")
}

func TestServerDisconnect(t *testing.T) {
	t.Parallel()

	srv := newDealServer(t, func(conn *websocket.Conn) {
		var req map[string]any
		require.NoError(t, conn.ReadJSON(&req), "Server: failed to read subscription")
		conn.Close()
	})

	stream, err := exchange.Dial(t.Context(), testConfig(srv))
	require.NoError(t, err, "Dial should not fail")
	defer stream.Close()

	requireClosed(t, stream)
	require.Error(t, stream.Err(), "Err should report the read failure")
}

func TestContextCancelStopsStream(t *testing.T) {
	t.Parallel()

	srv := newDealServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithCancel(t.Context())
	stream, err := exchange.Dial(ctx, testConfig(srv))
	require.NoError(t, err, "Dial should not fail")
	defer stream.Close()

	cancel()

	requireClosed(t, stream)
	require.ErrorIs(t, stream.Err(), context.Canceled, "Err should report the canceled context")
}

func TestHeartbeatIsSent(t *testing.T) {
	t.Parallel()

	pinged := make(chan struct{}, 1)
	srv := newDealServer(t, func(conn *websocket.Conn) {
		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req["method"] == "ping" {
				select {
				case pinged <- struct{}{}:
				default:
				}
			}
		}
	})

	cfg := testConfig(srv)
	cfg.PingInterval = 50 * time.Millisecond
	stream, err := exchange.Dial(t.Context(), cfg)
	require.NoError(t, err, "Dial should not fail")
	defer stream.Close()

	select {
	case <-pinged:
	case <-time.After(5 * time.Second):
		require.Fail(t, "Timed out waiting for a heartbeat")
	}
}

func TestDialErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg exchange.Config
	}{
		"Missing URL":    {cfg: exchange.Config{Symbol: "SUI_USDT"}},
		"Missing symbol": {cfg: exchange.Config{URL: "ws://localhost:1"}},
		"Unreachable endpoint": {cfg: exchange.Config{
			URL:         "ws://localhost:1",
			Symbol:      "SUI_USDT",
			DialTimeout: time.Second,
		}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := exchange.Dial(t.Context(), tc.cfg)
			require.Error(t, err, "Dial should have failed")
		})
	}
}

// newDealServer starts a websocket test server running handler for each connection.
func newDealServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *httptest.Server) exchange.Config {
	return exchange.Config{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		Symbol:      "SUI_USDT",
		DialTimeout: 5 * time.Second,
	}
}

func writeRaw(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg), &v), "Server: invalid test message")
	require.NoError(t, conn.WriteJSON(v), "Server: failed to write message")
}

func requireClosed(t *testing.T, stream *exchange.Stream) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-stream.Deals():
			if !ok {
				return
			}
		case <-deadline:
			require.Fail(t, "Timed out waiting for the deals channel to close")
		}
	}
}
