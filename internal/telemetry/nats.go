package telemetry

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink mirrors every event as JSON on <prefix>.<kind>.
type NATSSink struct {
	pub    natsPublisher
	conn   *nats.Conn
	prefix string
}

func DialNATS(url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("geordonctl"))
	if err != nil {
		return nil, err
	}
	return &NATSSink{pub: nc, conn: nc, prefix: normalizePrefix(prefix)}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Subject(k Kind) string {
	return s.prefix + "." + string(k)
}

func (s *NATSSink) Deliver(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.Subject(ev.Kind), data)
}

func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".:")
	if prefix == "" {
		return "geordon"
	}
	return prefix
}
