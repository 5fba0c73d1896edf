// Package transport opens single-use TCP connections to the controller.
//
// The controller is an embedded board that serves one socket at a time and
// needs a short pause after connect before it has data ready. Every logical
// operation therefore dials, performs exactly one read or one write, and
// closes again.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// DefaultPort is the controller's TCP port.
const DefaultPort = 27847

// Defaults used when Options leaves a field zero.
const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 5 * time.Second
	defaultBufferSize  = 4096
)

var (
	ErrConnect       = errors.New("controller connect failed")
	ErrRead          = errors.New("controller read failed")
	ErrEmptyResponse = errors.New("controller sent no data")
	ErrSend          = errors.New("controller send failed")
)

// Conn is one open connection. It is good for a single ReadFrame or SendFrame.
type Conn interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	SendFrame(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens connections to one controller.
type Dialer interface {
	Open(ctx context.Context) (Conn, error)
}

// Options tunes timing. Settle delays are empirical; zero disables them.
type Options struct {
	ConnectSettle time.Duration // pause before dialing
	ReadSettle    time.Duration // pause between connect and the read
	DialTimeout   time.Duration
	IOTimeout     time.Duration // read and write deadline
	BufferSize    int           // upper bound for a single read
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = defaultIOTimeout
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufferSize
	}
	return o
}

// TCPDialer dials host:port with the configured options.
type TCPDialer struct {
	addr string
	opts Options
}

var _ Dialer = (*TCPDialer)(nil)

// NewTCPDialer builds a dialer for the controller at host:port.
func NewTCPDialer(host string, port int, opts Options) *TCPDialer {
	if port == 0 {
		port = DefaultPort
	}
	return &TCPDialer{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		opts: opts.withDefaults(),
	}
}

// Addr returns the controller address in host:port form.
func (d *TCPDialer) Addr() string { return d.addr }

// Open waits the connect settle delay and dials the controller.
func (d *TCPDialer) Open(ctx context.Context) (Conn, error) {
	if err := Sleep(ctx, d.opts.ConnectSettle); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, d.addr, err)
	}

	dialer := net.Dialer{Timeout: d.opts.DialTimeout}
	c, err := dialer.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, d.addr, err)
	}
	return &tcpConn{conn: c, opts: d.opts}, nil
}

type tcpConn struct {
	conn net.Conn
	opts Options
}

// ReadFrame waits the read settle delay, then performs one bounded read.
func (c *tcpConn) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := Sleep(ctx, c.opts.ReadSettle); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if err := c.conn.SetReadDeadline(deadline(ctx, c.opts.IOTimeout)); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %w", ErrRead, err)
	}

	buf := make([]byte, c.opts.BufferSize)
	n, err := c.conn.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ErrEmptyResponse
		}
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	// A short read that also reports EOF still carries a usable frame.
	return buf[:n], nil
}

// SendFrame writes the whole frame under the IO deadline.
func (c *tcpConn) SendFrame(ctx context.Context, frame []byte) error {
	if err := c.conn.SetWriteDeadline(deadline(ctx, c.opts.IOTimeout)); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrSend, err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrSend, err)
	}
	return nil
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

// deadline picks the earlier of ctx's deadline and now+timeout.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

// Sleep pauses for d or until ctx is done. A non-positive d returns at once.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
