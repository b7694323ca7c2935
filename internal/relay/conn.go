// Package relay wraps a browser WebSocket with a single writer goroutine and
// ping keep-alive, shared by the workflow and voice relays.
package relay

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aicoe-genesis/genesis-backend/config"
)

// ErrClosed is returned when sending on a connection that is closing or closed.
var ErrClosed = errors.New("relay: connection closed")

type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFrameSize int64
}

// OptionsFromConfig maps server settings to socket options.
func OptionsFromConfig(cfg config.ServerConfig) Options {
	return Options{
		PingInterval: cfg.WSPingInterval,
		ReadTimeout:  cfg.WSReadTimeout,
		WriteTimeout: cfg.WSWriteTimeout,
		MaxFrameSize: cfg.WSMaxFrameSize,
	}
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Minute
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = 1 << 20
	}
	return o
}

// NewUpgrader accepts any origin; CORS_ORIGINS and the API key guard the routes.
func NewUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

type outbound struct {
	kind int
	data []byte
}

// Conn serializes writes through one goroutine. Reads stay with the caller,
// which must be a single goroutine.
type Conn struct {
	ws   *websocket.Conn
	opts Options

	send     chan outbound
	closing  chan struct{}
	done     chan struct{}
	once     sync.Once
	closeMsg []byte
}

func New(ws *websocket.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		ws:      ws,
		opts:    opts,
		send:    make(chan outbound, 64),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	ws.SetReadLimit(opts.MaxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	})

	go c.writePump()
	return c
}

// Read returns the next frame from the peer.
func (c *Conn) Read() (int, []byte, error) {
	kind, data, err := c.ws.ReadMessage()
	if err == nil {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	}
	return kind, data, err
}

func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enqueue(outbound{kind: websocket.TextMessage, data: data})
}

func (c *Conn) SendBinary(data []byte) error {
	return c.enqueue(outbound{kind: websocket.BinaryMessage, data: data})
}

func (c *Conn) enqueue(f outbound) error {
	select {
	case <-c.closing:
		return ErrClosed
	default:
	}
	select {
	case c.send <- f:
		return nil
	case <-c.closing:
		return ErrClosed
	case <-c.done:
		return ErrClosed
	}
}

// Close flushes queued frames, sends a close frame with code and closes the socket.
// Only the first call has an effect.
func (c *Conn) Close(code int, reason string) {
	c.once.Do(func() {
		c.closeMsg = websocket.FormatCloseMessage(code, reason)
		close(c.closing)
	})
}

// Done is closed once the socket has been closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				log.Printf("[warn] relay: write failed: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.write(outbound{kind: websocket.PingMessage}); err != nil {
				return
			}

		case <-c.closing:
			for {
				select {
				case f := <-c.send:
					if err := c.write(f); err != nil {
						return
					}
				default:
					_ = c.write(outbound{kind: websocket.CloseMessage, data: c.closeMsg})
					return
				}
			}
		}
	}
}

func (c *Conn) write(f outbound) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteMessage(f.kind, f.data)
}

// IsUnexpectedClose reports read errors worth logging.
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure)
}
