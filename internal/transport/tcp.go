package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrConnect        = errors.New("transport: connect failed")
	ErrConnectTimeout = errors.New("transport: connection timeout")
	ErrTimeout        = errors.New("transport: read timeout")
	ErrClosed         = errors.New("transport: connection closed")
	ErrIO             = errors.New("transport: i/o failure")
)

// DefaultReadChunk bounds a single Receive.
const DefaultReadChunk = 4096

// Conn is one outbound TCP stream owned by a single probe call.
type Conn struct {
	conn      net.Conn
	chunk     int
	closeOnce sync.Once
	closeErr  error
}

// Dial opens a TCP connection bounded by both timeout and ctx.
func Dial(ctx context.Context, host string, port int, timeout time.Duration) (*Conn, error) {
	addr := net.JoinHostPort(strings.TrimSpace(host), strconv.Itoa(port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %v", ErrConnectTimeout, addr, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, addr, err)
	}
	return Wrap(conn), nil
}

// Wrap adopts an established net.Conn.
func Wrap(conn net.Conn) *Conn {
	return &Conn{conn: conn, chunk: DefaultReadChunk}
}

func (c *Conn) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Send writes all of p before ctx's deadline.
func (c *Conn) Send(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if _, err := c.conn.Write(p); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: write: %v", ErrTimeout, err)
		}
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("%w: write: %w", ErrIO, err)
	}
	return nil
}

// Receive returns whatever bytes arrive within max, never waiting past ctx's
// deadline. Partial reads are returned as-is; an empty wait is ErrTimeout.
func (c *Conn) Receive(ctx context.Context, max time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	deadline := time.Now().Add(max)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)
	buf := make([]byte, c.chunk)
	n, err := c.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		return nil, nil
	}
	if isTimeout(err) {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, net.ErrClosed) {
		return nil, ErrClosed
	}
	return nil, fmt.Errorf("%w: read: %w", ErrIO, err)
}

// Close is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.closeErr = c.conn.Close()
		}
	})
	return c.closeErr
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
