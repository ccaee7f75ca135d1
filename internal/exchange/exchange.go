// Package exchange implements the client side of the MEXC contract websocket
// deal stream. It dials the edge endpoint, subscribes to a symbol's public
// trade executions and delivers them over a channel until the stream fails or
// the context is canceled.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrStreamRejected is returned when the exchange answers the subscription
// with an error frame.
var ErrStreamRejected = errors.New("exchange rejected the subscription")

// Deal is a single trade execution received from the stream.
type Deal struct {
	Price      float64
	ReceivedAt time.Time
}

// Config holds the connection settings for one stream session.
type Config struct {
	URL    string
	Symbol string

	DialTimeout  time.Duration
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

// Stream is a live subscription to one symbol's deal stream.
type Stream struct {
	conn   wsConn
	symbol string
	cfg    Config

	deals chan Deal
	done  chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	mu  sync.Mutex
	err error

	timeNow func() time.Time
}

type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	Close() error
}

type options struct {
	dial    func(ctx context.Context, url string, timeout time.Duration) (wsConn, error)
	timeNow func() time.Time
}

// Options represents an optional function to override Stream default values.
type Options func(*options)

func defaultDial(ctx context.Context, url string, timeout time.Duration) (wsConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Dial connects to the exchange, subscribes to the configured symbol's deal
// stream and starts the heartbeat and reader goroutines.
//
// The stream stops when the connection fails, the subscription is rejected, or
// ctx is canceled. Either way the Deals channel is closed and Err reports why.
func Dial(ctx context.Context, cfg Config, args ...Options) (*Stream, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("websocket URL must be set")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol must be set")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}

	opts := options{
		dial:    defaultDial,
		timeNow: time.Now,
	}
	for _, opt := range args {
		opt(&opts)
	}

	conn, err := opts.dial(ctx, cfg.URL, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.URL, err)
	}

	s := &Stream{
		conn:    conn,
		symbol:  cfg.Symbol,
		cfg:     cfg,
		deals:   make(chan Deal, 64),
		done:    make(chan struct{}),
		timeNow: opts.timeNow,
	}

	if err := conn.WriteJSON(subscribeRequest{
		Method: methodSubscribeDeals,
		Param:  subscribeParam{Symbol: cfg.Symbol},
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s deals: %w", cfg.Symbol, err)
	}
	slog.Info("Connected to exchange", "url", cfg.URL, "symbol", cfg.Symbol)

	s.wg.Add(3)
	go s.watchContext(ctx)
	go s.pingLoop()
	go s.readLoop()

	return s, nil
}

// Deals returns the channel trade executions are delivered on.
// The channel is closed when the stream ends; check Err afterwards.
func (s *Stream) Deals() <-chan Deal {
	return s.deals
}

// Err returns the reason the stream ended.
// It only carries meaning once the Deals channel has been closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close terminates the stream and waits for its goroutines to finish.
// It is safe to call multiple times.
func (s *Stream) Close() error {
	s.fail(nil)
	s.wg.Wait()
	return nil
}

// fail records the first terminal error and tears the connection down.
// Closing the connection unblocks the pending ReadMessage.
func (s *Stream) fail(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		close(s.done)
		s.conn.Close()
	})
}

func (s *Stream) watchContext(ctx context.Context) {
	defer s.wg.Done()

	select {
	case <-ctx.Done():
		s.fail(ctx.Err())
	case <-s.done:
	}
}

// pingLoop sends the application-level heartbeat.
// It is the only writer once the subscription has been sent.
func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteJSON(pingRequest{Method: methodPing}); err != nil {
				s.fail(fmt.Errorf("failed to send heartbeat: %w", err))
				return
			}
		}
	}
}

func (s *Stream) readLoop() {
	defer s.wg.Done()
	defer close(s.deals)

	for {
		if err := s.conn.SetReadDeadline(s.timeNow().Add(s.cfg.ReadTimeout)); err != nil {
			s.fail(fmt.Errorf("failed to set read deadline: %w", err))
			return
		}
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(fmt.Errorf("stream read failed: %w", err))
			return
		}

		f, err := decodeFrame(raw)
		if err != nil {
			slog.Debug("Skipping undecodable message", "symbol", s.symbol, "err", err)
			continue
		}

		switch f.Channel {
		case channelPong:
			// Heartbeat reply, consumed silently.
		case channelSubscribeAck:
			slog.Debug("Deal subscription acknowledged", "symbol", s.symbol)
		case channelError:
			s.fail(fmt.Errorf("%w: %v", ErrStreamRejected, f.Data))
			return
		case channelDeals:
			deals, err := decodeDeals(f.Data)
			if err != nil {
				slog.Debug("Skipping deal push", "symbol", s.symbol, "err", err)
				continue
			}
			receivedAt := s.timeNow()
			for _, d := range deals {
				select {
				case s.deals <- Deal{Price: d.Price, ReceivedAt: receivedAt}:
				case <-s.done:
					return
				}
			}
		default:
			slog.Debug("Ignoring message on unexpected channel", "symbol", s.symbol, "channel", f.Channel)
		}
	}
}
