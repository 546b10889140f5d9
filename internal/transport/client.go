// Package transport implements the raw TCP socket this client uses to reach
// a DoIP gateway. It owns exactly one connection at a time: connect, send,
// receive, and disconnect. Connect, Send, Receive and ReceiveExact are each
// guarded by a per-call deadline derived from the configured timeout;
// Connect is additionally bounded by the caller's context, whichever is
// sooner.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// DefaultTimeout is used when a Config does not specify one, matching the
// 30 second default the original client tooling used for every DoIP socket
// operation.
const DefaultTimeout = 30 * time.Second

// recvBufferSize is the size of a single non-blocking-style read; DoIP
// diagnostic messages comfortably fit well under this.
const recvBufferSize = 4096

// ErrNotConnected is returned by Send/Receive/ReceiveExact when called
// before Connect or after the peer has closed the connection.
var ErrNotConnected = errors.New("transport: not connected")

// ErrTimeout is returned by Receive/ReceiveExact when the per-call read
// deadline elapses before any data (or the requested length) arrives. A
// timeout leaves the connection intact — unlike a peer close, the caller may
// simply retry the read.
var ErrTimeout = errors.New("transport: read timeout")

// ErrConnectionClosed is returned by Receive/ReceiveExact when a zero-byte
// read indicates the peer has actually torn down the socket (as opposed to a
// deadline elapsing). The connection is marked dead.
var ErrConnectionClosed = errors.New("transport: connection closed by peer")

// Config describes the endpoint to dial and how long to wait for each
// socket operation.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Client wraps a single TCP connection to a DoIP gateway. A Client is safe
// for concurrent use; every public method takes the same mutex, mirroring
// the whole-call exclusivity the original client held over its socket.
type Client struct {
	mu        sync.Mutex
	cfg       Config
	conn      net.Conn
	connected bool
	logger    *slog.Logger
}

// New creates a Client for the given endpoint. Connect must be called
// before any I/O.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// Connect dials the configured host:port, bounded by the lesser of the
// client's configured timeout and ctx's deadline.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.logger.Error("connect failed", "addr", addr, "error", err)
		return fmt.Errorf("transport: connect %s: %w", addr, err)
	}

	c.conn = conn
	c.connected = true
	c.logger.Info("connected", "addr", addr)
	return nil
}

// Send writes the full payload to the connection, failing fast if the
// client is not currently connected.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}

	if _, err := c.conn.Write(data); err != nil {
		c.logger.Error("send failed", "error", err)
		return fmt.Errorf("transport: send: %w", err)
	}
	c.logger.Debug("sent bytes", "count", len(data))
	return nil
}

// Receive reads whatever is available up to a 4KB buffer. It returns
// ErrTimeout if the read deadline elapses (the connection stays usable) and
// ErrConnectionClosed if a zero-byte read shows the peer closed the socket;
// the latter marks the connection dead, so subsequent calls fail fast with
// ErrNotConnected instead of spinning on a closed socket.
func (c *Client) Receive() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiveLocked()
}

func (c *Client) receiveLocked() ([]byte, error) {
	if !c.connected || c.conn == nil {
		return nil, ErrNotConnected
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}

	buf := make([]byte, recvBufferSize)
	n, err := c.conn.Read(buf)
	if n == 0 && err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.logger.Debug("receive timed out")
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		c.connected = false
		c.logger.Info("connection closed by peer")
		return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	if err != nil {
		c.logger.Error("receive failed", "error", err)
		return nil, fmt.Errorf("transport: receive: %w", err)
	}
	c.logger.Debug("received bytes", "count", n)
	return buf[:n], nil
}

// ReceiveExact reads exactly n bytes, blocking across multiple reads as
// needed within the configured timeout.
func (c *Client) ReceiveExact(n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}

	out := make([]byte, n)
	read := 0
	for read < n {
		m, err := c.conn.Read(out[read:])
		if m == 0 && err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				c.logger.Debug("receive exact timed out")
				return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			c.connected = false
			c.logger.Info("connection closed by peer")
			return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		read += m
		if err != nil {
			return nil, fmt.Errorf("transport: receive exact: %w", err)
		}
	}
	c.logger.Debug("received exact bytes", "count", n)
	return out, nil
}

// Disconnect closes the underlying connection, if any. It is safe to call
// more than once.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("disconnect failed", "error", err)
		}
		c.conn = nil
	}
	c.connected = false
	c.logger.Info("connection closed")
	return nil
}

// IsConnected reports whether the client currently believes it holds a live
// connection (it does not probe the socket).
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil
}

// SetTimeout updates the per-operation timeout used by subsequent calls.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Timeout = timeout
}
