package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// LogsFilter selects which transactions a log subscription covers.
// An empty Mentions list subscribes to all transactions.
type LogsFilter struct {
	Mentions []string
}

// LogNotification is one logsNotification event.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{} // non-nil when the transaction failed
}

// LogStreamer is the subscription interface consumed by discovery.
type LogStreamer interface {
	Events() <-chan LogNotification
	Close() error
}

// WSConfig configures reconnect and keepalive behavior.
type WSConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultWSConfig returns the default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClient maintains a single logsSubscribe stream over a gorilla
// websocket connection, reconnecting and resubscribing transparently.
type WSClient struct {
	endpoint string
	config   WSConfig
	filter   LogsFilter

	conn   *websocket.Conn
	connMu sync.Mutex

	closed    atomic.Bool
	requestID atomic.Uint64

	// events carries notifications to the consumer. The buffer absorbs
	// bursts; sends block rather than drop so no pool creation is lost.
	events chan LogNotification

	done chan struct{}
	wg   sync.WaitGroup
}

var _ LogStreamer = (*WSClient)(nil)

// DialLogs connects to the endpoint, establishes the subscription and
// starts the read and keepalive loops.
func DialLogs(ctx context.Context, endpoint string, filter LogsFilter, config *WSConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		filter:   filter,
		events:   make(chan LogNotification, 10000),
		done:     make(chan struct{}),
	}

	if err := c.connectAndSubscribe(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Events returns the notification stream. The channel is closed on
// Close.
func (c *WSClient) Events() <-chan LogNotification { return c.events }

// Close shuts the connection down and closes the event channel.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

// connectAndSubscribe dials the endpoint, sends the logsSubscribe
// request and waits for the subscription confirmation on the same
// connection before handing it to the read loop.
func (c *WSClient) connectAndSubscribe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	reqID := c.requestID.Add(1)

	mentions := make(map[string]interface{})
	if len(c.filter.Mentions) > 0 {
		mentions["mentions"] = c.filter.Mentions
	} else {
		mentions["all"] = nil
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentions,
			map[string]string{"commitment": "confirmed"},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	// Read until the confirmation for our request arrives. Notifications
	// cannot arrive before it on a fresh connection.
	deadline := time.Now().Add(30 * time.Second)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	for {
		conn.SetReadDeadline(deadline)
		_, message, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return fmt.Errorf("await subscribe confirmation: %w", err)
		}

		var resp wsSubscribeResponse
		if err := json.Unmarshal(message, &resp); err == nil && resp.ID == reqID {
			if resp.Error != nil {
				conn.Close()
				return fmt.Errorf("subscribe rejected: code=%d msg=%s", resp.Error.Code, resp.Error.Message)
			}
			break
		}
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// readLoop reads notifications and reconnects with exponential backoff
// when the connection drops.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			log.Printf("[ws] read failed, reconnecting in %v: %v", reconnectDelay, err)
			select {
			case <-c.done:
				return
			case <-time.After(reconnectDelay):
			}

			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := c.connectAndSubscribe(ctx)
			cancel()
			if err != nil {
				log.Printf("[ws] reconnect failed: %v", err)
			}
			continue
		}

		reconnectDelay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// handleMessage dispatches a logsNotification to the event channel.
func (c *WSClient) handleMessage(message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "logsNotification" {
		return
	}
	if notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value
	event := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Err:       value.Err,
	}
	if notif.Params.Result.Context != nil {
		event.Slot = notif.Params.Result.Context.Slot
	}

	select {
	case c.events <- event:
	case <-c.done:
	}
}

// pingLoop keeps the connection alive through idle periods.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A failed ping surfaces as a read error, which triggers
				// the reconnect path.
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
