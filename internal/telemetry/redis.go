package telemetry

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danmuck/geordon/internal/protocol/message"
)

const debugHistory = 100

// RedisSink keeps a shadow of the client state under <prefix>:*.
type RedisSink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func DialRedis(ctx context.Context, addr, prefix string, ttl time.Duration) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	pctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisSink{client: client, prefix: normalizePrefix(prefix), ttl: ttl}, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Key(part string) string {
	return s.prefix + ":" + part
}

func (s *RedisSink) Deliver(ctx context.Context, ev Event) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		switch ev.Kind {
		case KindPose:
			if ev.Pose == nil {
				return nil
			}
			key := s.Key("pose")
			pipe.HSet(ctx, key,
				"x", ev.Pose.X,
				"y", ev.Pose.Y,
				"v", ev.Pose.V,
				"angle", ev.Pose.Angle,
				"av", ev.Pose.AV,
				"ts", ev.At.UnixMilli(),
			)
			s.expire(ctx, pipe, key)
		case KindHalfRow:
			if ev.Index == nil {
				return nil
			}
			key := s.Key("grid")
			pipe.SetRange(ctx, key, int64(*ev.Index*message.HalfRowLen), string(ev.Cells))
			s.expire(ctx, pipe, key)
		case KindFetchComplete, KindGridReset:
			pipe.Set(ctx, s.Key("grid"), ev.Cells, s.ttl)
		case KindDebug:
			key := s.Key("debug")
			pipe.RPush(ctx, key, ev.Text)
			pipe.LTrim(ctx, key, -debugHistory, -1)
			s.expire(ctx, pipe, key)
		case KindPing:
			key := s.Key("ping")
			pipe.HSet(ctx, key, "rtt_ms", ev.ElapsedMS, "ts", ev.At.UnixMilli())
			s.expire(ctx, pipe, key)
		}
		return nil
	})
	return err
}

func (s *RedisSink) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
