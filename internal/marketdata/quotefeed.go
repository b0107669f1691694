package marketdata

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

const (
	// WebSocket connection constants
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	// Reconnection constants
	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// wsQuote is the wire shape of one streamed quote update. Protocol:
// ["quotes", {...}] text frames.
type wsQuote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Change7d  float64 `json:"change_7d"`
	Volume    float64 `json:"volume"`
	Ts        string  `json:"ts"`
}

// StreamingQuoteFeed keeps the gateway's quote cache warm from a WebSocket
// quote stream, so GetQuote rarely needs to spend a provider token. The feed
// is optional: installs without a feed URL simply never start it.
type StreamingQuoteFeed struct {
	// Connection
	url        string
	httpClient *http.Client // Reusable HTTP client configured for HTTP/1.1
	conn       *websocket.Conn
	connCtx    context.Context    // Connection context (cancelled on disconnect)
	cancelFunc context.CancelFunc // For cancelling the connection context
	mu         sync.RWMutex

	// Dependencies
	cache *QuoteCache
	log   zerolog.Logger

	// State
	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool
	updateCount  int64
}

// createHTTP1Client creates an HTTP client that forces HTTP/1.1
// Required because CDN edges negotiate HTTP/2 via TLS ALPN,
// but WebSocket requires HTTP/1.1 for the upgrade handshake.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				// Force HTTP/1.1 by only advertising http/1.1 in ALPN
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false, // Explicitly disable HTTP/2
		},
	}
}

// NewStreamingQuoteFeed creates a quote feed writing into the given cache.
func NewStreamingQuoteFeed(url string, cache *QuoteCache, log zerolog.Logger) *StreamingQuoteFeed {
	return &StreamingQuoteFeed{
		url:        url,
		httpClient: createHTTP1Client(),
		cache:      cache,
		log:        log.With().Str("component", "quote_feed").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// Start initializes the WebSocket connection and starts the read loop
func (ws *StreamingQuoteFeed) Start() error {
	ws.log.Info().Str("url", ws.url).Msg("Starting streaming quote feed")

	// Initial connection
	if err := ws.Connect(); err != nil {
		ws.log.Warn().Err(err).Msg("Initial quote feed connection failed, will retry in background")
		go ws.reconnectLoop()
		return err
	}

	// Start read loop in background with connection context
	ws.mu.RLock()
	ctx := ws.connCtx
	ws.mu.RUnlock()
	go ws.readMessages(ctx)

	ws.log.Info().Msg("Streaming quote feed started")
	return nil
}

// Stop gracefully shuts down the WebSocket connection
func (ws *StreamingQuoteFeed) Stop() error {
	ws.mu.Lock()
	if ws.stopped {
		ws.mu.Unlock()
		return nil
	}
	ws.stopped = true
	ws.mu.Unlock()

	ws.log.Info().Msg("Stopping streaming quote feed")

	close(ws.stopChan)
	return ws.Disconnect()
}

// Connect establishes the WebSocket connection and subscribes to the quotes
// channel.
func (ws *StreamingQuoteFeed) Connect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.log.Info().Str("url", ws.url).Msg("Connecting to quote feed")

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	// Dial with nhooyr.io/websocket using the pre-configured HTTP/1.1 client
	conn, _, err := websocket.Dial(dialCtx, ws.url, &websocket.DialOptions{
		HTTPClient: ws.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to dial quote feed: %w", err)
	}

	// Long-lived context for the connection, cancelled on disconnect
	connCtx, connCancel := context.WithCancel(context.Background())
	ws.conn = conn
	ws.connCtx = connCtx
	ws.cancelFunc = connCancel
	ws.connected = true

	if err := ws.subscribe(connCtx); err != nil {
		connCancel()
		_ = conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		ws.conn = nil
		ws.connCtx = nil
		ws.cancelFunc = nil
		ws.connected = false
		return fmt.Errorf("failed to subscribe to quotes: %w", err)
	}

	ws.log.Info().Msg("Connected to quote feed")
	return nil
}

// Disconnect closes the WebSocket connection
func (ws *StreamingQuoteFeed) Disconnect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn == nil {
		return nil
	}

	// Cancel the connection context to unblock any pending Read operations
	if ws.cancelFunc != nil {
		ws.cancelFunc()
		ws.cancelFunc = nil
	}

	err := ws.conn.Close(websocket.StatusNormalClosure, "")

	ws.conn = nil
	ws.connCtx = nil
	ws.connected = false

	if err != nil {
		return fmt.Errorf("error closing quote feed: %w", err)
	}
	return nil
}

// subscribe sends the subscription message for the quotes channel
func (ws *StreamingQuoteFeed) subscribe(ctx context.Context) error {
	subscribeMsg := []string{"quotes"}

	data, err := json.Marshal(subscribeMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := ws.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send subscription message: %w", err)
	}

	ws.log.Info().Msg("Subscribed to quotes channel")
	return nil
}

// readMessages continuously reads messages from the WebSocket
func (ws *StreamingQuoteFeed) readMessages(ctx context.Context) {
	defer func() {
		ws.log.Info().Msg("Quote feed read loop stopped")
		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if !stopped {
			go ws.reconnectLoop()
		}
	}()

	for {
		select {
		case <-ws.stopChan:
			return
		case <-ctx.Done():
			ws.log.Debug().Msg("Quote feed read loop context cancelled")
			return
		default:
		}

		ws.mu.RLock()
		conn := ws.conn
		ws.mu.RUnlock()

		if conn == nil {
			ws.log.Warn().Msg("Connection is nil, stopping read loop")
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				ws.log.Info().Int("status", int(closeStatus)).Msg("Quote feed closed normally")
			} else if ctx.Err() != nil {
				ws.log.Debug().Msg("Quote feed read cancelled by context")
			} else {
				ws.log.Error().Err(err).Msg("Unexpected quote feed read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			ws.log.Debug().Int("type", int(msgType)).Msg("Ignoring non-text message")
			continue
		}

		if err := ws.handleMessage(message); err != nil {
			ws.log.Error().Err(err).Str("message", string(message)).Msg("Failed to handle quote message")
			// Continue reading despite parse errors
		}
	}
}

// handleMessage parses one ["quotes", {...}] frame and updates the cache.
func (ws *StreamingQuoteFeed) handleMessage(message []byte) error {
	var rawMessage []json.RawMessage
	if err := json.Unmarshal(message, &rawMessage); err != nil {
		return fmt.Errorf("failed to parse message array: %w", err)
	}

	if len(rawMessage) < 2 {
		return fmt.Errorf("message array too short: expected 2 elements, got %d", len(rawMessage))
	}

	var channel string
	if err := json.Unmarshal(rawMessage[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}
	if channel != "quotes" {
		ws.log.Debug().Str("channel", channel).Msg("Ignoring non-quotes message")
		return nil
	}

	var update wsQuote
	if err := json.Unmarshal(rawMessage[1], &update); err != nil {
		return fmt.Errorf("failed to parse quote update: %w", err)
	}

	return ws.handleQuoteUpdate(update)
}

// handleQuoteUpdate validates a streamed quote and writes it to the cache.
func (ws *StreamingQuoteFeed) handleQuoteUpdate(update wsQuote) error {
	if update.Symbol == "" {
		return fmt.Errorf("quote update missing symbol")
	}
	if update.Price <= 0 {
		return fmt.Errorf("quote update for %s has non-positive price %f", update.Symbol, update.Price)
	}

	asOf := time.Now().UTC()
	if update.Ts != "" {
		if parsed, err := time.Parse(time.RFC3339, update.Ts); err == nil {
			asOf = parsed
		}
	}

	ws.cache.Set(domain.Quote{
		Symbol:    update.Symbol,
		Price:     update.Price,
		Change24h: update.Change24h,
		Change7d:  update.Change7d,
		Volume:    update.Volume,
		AsOf:      asOf,
	})

	ws.mu.Lock()
	ws.updateCount++
	count := ws.updateCount
	ws.mu.Unlock()

	ws.log.Debug().
		Str("symbol", update.Symbol).
		Float64("price", update.Price).
		Int64("updates", count).
		Msg("Quote cache updated from stream")

	return nil
}

// reconnectLoop handles automatic reconnection with exponential backoff
func (ws *StreamingQuoteFeed) reconnectLoop() {
	ws.mu.Lock()
	if ws.reconnecting || ws.stopped {
		ws.mu.Unlock()
		return
	}
	ws.reconnecting = true
	ws.mu.Unlock()

	defer func() {
		ws.mu.Lock()
		ws.reconnecting = false
		ws.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-ws.stopChan:
			ws.log.Info().Msg("Reconnection loop stopped")
			return
		default:
		}

		ws.mu.RLock()
		stopped := ws.stopped
		ws.mu.RUnlock()
		if stopped {
			return
		}

		attempt++
		delay := ws.calculateBackoff(attempt)

		if attempt <= maxReconnectAttempts {
			ws.log.Info().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Attempting to reconnect to quote feed")
		} else {
			ws.log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Reconnection attempt (exceeded max attempts, will keep retrying)")
		}

		select {
		case <-time.After(delay):
		case <-ws.stopChan:
			return
		}

		if err := ws.Connect(); err != nil {
			ws.log.Error().Err(err).
				Int("attempt", attempt).
				Msg("Reconnection failed")
			continue
		}

		ws.log.Info().Int("attempt", attempt).Msg("Reconnected to quote feed")

		ws.mu.RLock()
		ctx := ws.connCtx
		ws.mu.RUnlock()
		go ws.readMessages(ctx)
		return
	}
}

// calculateBackoff calculates exponential backoff delay
func (ws *StreamingQuoteFeed) calculateBackoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}

// IsConnected returns current connection status
func (ws *StreamingQuoteFeed) IsConnected() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.connected
}

// UpdateCount returns how many quote updates the feed has applied.
func (ws *StreamingQuoteFeed) UpdateCount() int64 {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.updateCount
}
