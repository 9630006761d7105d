package geordon

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/geordon/internal/protocol/message"
	"github.com/danmuck/geordon/internal/protocol/session"
	"github.com/danmuck/geordon/internal/telemetry"
)

var (
	ErrTransport      = errors.New("geordon: transport failure")
	ErrConnectionLost = errors.New("geordon: inbound reader terminated")
	ErrInputLost      = errors.New("geordon: command source terminated")
)

const (
	DefaultRowRetryInterval = 5 * time.Second
	DefaultPollInterval     = 2 * time.Millisecond
)

type Config struct {
	// RowRetryInterval is how long an active fetch may stay silent before
	// the current half-row is requested again.
	RowRetryInterval time.Duration
	// PollInterval bounds how long Run sleeps when both queues are empty.
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		RowRetryInterval: DefaultRowRetryInterval,
		PollInterval:     DefaultPollInterval,
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.RowRetryInterval <= 0 {
		c.RowRetryInterval = d.RowRetryInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// Sender writes one message to the controller. *session.Conn satisfies it.
type Sender interface {
	Send(message.Message) error
}

// Client is the dispatch loop and the state it owns. Only the goroutine
// calling Step or Run may touch it; producers reach it through the queues.
type Client struct {
	out      Sender
	cfg      Config
	inbound  *session.Queue[message.Message]
	commands *session.Queue[string]
	console  io.Writer
	now      func() time.Time
	sink     telemetry.Sink

	grid        *Grid
	fetch       RowFetch
	pose        message.Point
	pingPending bool
	pingSentAt  time.Time
}

type Option func(*Client)

// WithConsole sets the operator-facing writer. Defaults to io.Discard.
func WithConsole(w io.Writer) Option {
	return func(c *Client) {
		if w != nil {
			c.console = w
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithSink(s telemetry.Sink) Option {
	return func(c *Client) {
		if s != nil {
			c.sink = s
		}
	}
}

func New(out Sender, cfg Config, opts ...Option) *Client {
	c := &Client{
		out:      out,
		cfg:      cfg.WithDefaults(),
		inbound:  session.NewQueue[message.Message](),
		commands: session.NewQueue[string](),
		console:  io.Discard,
		now:      time.Now,
		sink:     telemetry.Discard{},
		grid:     NewGrid(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Inbound is the queue ReadLoop feeds.
func (c *Client) Inbound() *session.Queue[message.Message] {
	return c.inbound
}

// Commands is the queue CommandLoop feeds.
func (c *Client) Commands() *session.Queue[string] {
	return c.commands
}

func (c *Client) Grid() *Grid {
	return c.grid
}

func (c *Client) Pose() message.Point {
	return c.pose
}

func (c *Client) Fetch() FetchState {
	return c.fetch.State()
}

func (c *Client) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.console, format, args...)
}
