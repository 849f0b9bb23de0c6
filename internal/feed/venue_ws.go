// Package feed streams venue price ticks into the quote aggregator over
// WebSocket, complementing the polling refresh loop with push updates.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LimitlessJacko/LimitlessFlashBot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// PriceObserver receives streamed price ticks.
type PriceObserver interface {
	Observe(ctx context.Context, venue string, pair domain.Pair, price float64, ts time.Time)
}

// wsCommand is the subscription envelope sent to the venue stream.
type wsCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel"`
	Pairs   []string `json:"pairs"`
}

// wsTick is one price update from the venue stream.
type wsTick struct {
	Channel string  `json:"channel"`
	Venue   string  `json:"venue"`
	Pair    string  `json:"pair"`
	Price   float64 `json:"price"`
	TS      int64   `json:"ts"` // Unix milliseconds
}

// VenueWSFeed connects to a venue's price WebSocket, subscribes to the
// tracked pairs, and pushes each tick into the observer. It reconnects with
// exponential backoff on disconnect and keeps the connection alive with
// periodic pings.
type VenueWSFeed struct {
	wsURL    string
	pairs    []domain.Pair
	observer PriceObserver
	logger   *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewVenueWSFeed creates a feed that will subscribe to the given pairs.
func NewVenueWSFeed(wsURL string, pairs []domain.Pair, observer PriceObserver, logger *slog.Logger) *VenueWSFeed {
	return &VenueWSFeed{
		wsURL:    wsURL,
		pairs:    pairs,
		observer: observer,
		logger:   logger.With(slog.String("component", "venue_ws_feed")),
		done:     make(chan struct{}),
	}
}

// Run connects, subscribes, and consumes ticks until ctx is cancelled or
// Close is called. Disconnects trigger reconnection with exponential backoff.
func (f *VenueWSFeed) Run(ctx context.Context) error {
	if len(f.pairs) == 0 {
		f.logger.Info("no pairs to subscribe, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("venue ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Close stops the feed.
func (f *VenueWSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// runConnection dials, subscribes, and reads ticks until the connection
// drops or the feed is stopped. It returns nil only on a clean shutdown.
func (f *VenueWSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := dialer.DialContext(dialCtx, f.wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.logger.Info("venue ws subscribed", slog.Int("pairs", len(f.pairs)))

	// Ping loop and shutdown watcher; closing the connection unblocks
	// ReadMessage below.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-f.done:
				conn.Close()
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return fmt.Errorf("feed: read: %w", err)
		}
		f.handleMessage(ctx, message)
	}
}

func (f *VenueWSFeed) subscribe(conn *websocket.Conn) error {
	pairs := make([]string, 0, len(f.pairs))
	for _, p := range f.pairs {
		pairs = append(pairs, p.String())
	}

	cmd := wsCommand{Type: "subscribe", Channel: "price", Pairs: pairs}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("feed: marshal subscribe: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

// handleMessage parses one price tick and forwards it to the observer.
// Unparseable or non-price messages are dropped silently.
func (f *VenueWSFeed) handleMessage(ctx context.Context, raw []byte) {
	var tick wsTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return
	}
	if tick.Channel != "price" || tick.Price <= 0 {
		return
	}

	pair, err := domain.ParsePair(tick.Pair)
	if err != nil {
		return
	}

	ts := time.UnixMilli(tick.TS)
	if tick.TS == 0 {
		ts = time.Now().UTC()
	}

	f.observer.Observe(ctx, tick.Venue, pair, tick.Price, ts)
}
