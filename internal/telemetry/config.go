package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config selects which sinks the fan-out drives. Empty addresses disable
// the matching sink.
type Config struct {
	Buffer            int
	Feed              bool
	NATSURL           string
	NATSSubjectPrefix string
	RedisAddr         string
	RedisKeyPrefix    string
	RedisTTL          time.Duration
}

func DefaultConfig() Config {
	return Config{
		Buffer:            256,
		Feed:              true,
		NATSSubjectPrefix: "geordon",
		RedisKeyPrefix:    "geordon",
		RedisTTL:          24 * time.Hour,
	}
}

// Build connects every configured sink. The returned feed is nil when the
// websocket feed is disabled.
func Build(ctx context.Context, cfg Config) (*Fanout, *Feed, error) {
	sinks := make([]Deliverer, 0, 3)
	var feed *Feed
	if cfg.Feed {
		feed = NewFeed()
		sinks = append(sinks, feed)
	}
	if url := strings.TrimSpace(cfg.NATSURL); url != "" {
		ns, err := DialNATS(url, cfg.NATSSubjectPrefix)
		if err != nil {
			closeAll(sinks)
			return nil, nil, fmt.Errorf("telemetry: nats %s: %w", url, err)
		}
		sinks = append(sinks, ns)
	}
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		rs, err := DialRedis(ctx, addr, cfg.RedisKeyPrefix, cfg.RedisTTL)
		if err != nil {
			closeAll(sinks)
			return nil, nil, fmt.Errorf("telemetry: redis %s: %w", addr, err)
		}
		sinks = append(sinks, rs)
	}
	return NewFanout(cfg.Buffer, sinks...), feed, nil
}

func closeAll(sinks []Deliverer) {
	for _, s := range sinks {
		_ = s.Close()
	}
}
