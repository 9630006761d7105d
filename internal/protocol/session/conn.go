package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/geordon/internal/protocol/frame"
	"github.com/danmuck/geordon/internal/protocol/message"
)

var (
	ErrAddressRequired = errors.New("session: controller address required")
	ErrEncode          = errors.New("session: message encode failed")
	ErrInvalidMessage  = errors.New("session: invalid message")
)

// Conn is one framed connection to the controller. Send is safe to call
// from one writer; Receive from one reader.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    Config
	mu     sync.Mutex
}

// Dial connects to address and writes the greeting. Any failure closes the
// socket and is fatal to the caller.
func Dial(ctx context.Context, address string, cfg Config) (*Conn, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrAddressRequired
	}
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	c := NewConn(raw, cfg)
	if err := c.greet(); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return c, nil
}

// NewConn wraps an established stream without performing the handshake.
func NewConn(conn net.Conn, cfg Config) *Conn {
	return &Conn{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg.WithDefaults(),
	}
}

func (c *Conn) greet() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.setWriteDeadline(); err != nil {
		return err
	}
	return WriteGreeting(c.conn)
}

// Send encodes m and writes it as one frame. Encoding problems, including
// bodies outside 1..256 bytes, wrap ErrEncode and write nothing.
func (c *Conn) Send(m message.Message) error {
	body, err := message.Encode(m)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if _, err := frame.EncodeHeader(len(body)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, m.Kind(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.setWriteDeadline(); err != nil {
		return err
	}
	return frame.WriteFrame(c.conn, body)
}

// Receive blocks for the next frame. A body that fails to decode returns an
// error wrapping ErrInvalidMessage and leaves the stream aligned on the next
// frame; every other error means the stream is unusable.
func (c *Conn) Receive() (message.Message, error) {
	body, err := frame.ReadFrame(c.reader)
	if err != nil {
		return nil, err
	}
	m, err := message.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return m, nil
}

func (c *Conn) RemoteAddr() string {
	if c.conn == nil || c.conn.RemoteAddr() == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Conn) setWriteDeadline() error {
	if c.cfg.WriteTimeout <= 0 {
		return nil
	}
	return c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
}
