package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/geordon/internal/admin"
	"github.com/danmuck/geordon/internal/geordon"
	"github.com/danmuck/geordon/internal/logging"
	"github.com/danmuck/geordon/internal/protocol/session"
	"github.com/danmuck/geordon/internal/telemetry"
)

// Settings is a validated File split per consumer.
type Settings struct {
	Session   session.Config
	Client    geordon.Config
	Telemetry telemetry.Config
	Admin     admin.Config
	LogLevel  string
}

func Resolve(f File) (Settings, error) {
	var out Settings
	var err error

	if out.Session.ConnectTimeout, err = positiveDuration("connect_timeout", f.ConnectTimeout); err != nil {
		return Settings{}, err
	}
	if out.Session.WriteTimeout, err = positiveDuration("write_timeout", f.WriteTimeout); err != nil {
		return Settings{}, err
	}
	if out.Client.RowRetryInterval, err = positiveDuration("row_retry_interval", f.RowRetryInterval); err != nil {
		return Settings{}, err
	}
	if out.Client.PollInterval, err = positiveDuration("poll_interval", f.PollInterval); err != nil {
		return Settings{}, err
	}

	out.LogLevel = strings.TrimSpace(f.LogLevel)
	if out.LogLevel != "" && !logging.ValidLevel(out.LogLevel) {
		return Settings{}, fmt.Errorf("config: unknown log_level %q", f.LogLevel)
	}

	out.Admin = admin.Config{
		ListenAddr:  strings.TrimSpace(f.Admin.ListenAddr),
		CORSOrigins: f.Admin.CORSOrigins,
	}

	if f.Telemetry.Buffer < 0 {
		return Settings{}, fmt.Errorf("config: telemetry.buffer must not be negative")
	}
	ttl := time.Duration(0)
	if raw := strings.TrimSpace(f.Telemetry.RedisTTL); raw != "" {
		if ttl, err = time.ParseDuration(raw); err != nil || ttl < 0 {
			return Settings{}, fmt.Errorf("config: invalid telemetry.redis_ttl %q", f.Telemetry.RedisTTL)
		}
	}
	out.Telemetry = telemetry.Config{
		Buffer:            f.Telemetry.Buffer,
		Feed:              f.Telemetry.Feed,
		NATSURL:           strings.TrimSpace(f.Telemetry.NATSURL),
		NATSSubjectPrefix: strings.TrimSpace(f.Telemetry.NATSSubjectPrefix),
		RedisAddr:         strings.TrimSpace(f.Telemetry.RedisAddr),
		RedisKeyPrefix:    strings.TrimSpace(f.Telemetry.RedisKeyPrefix),
		RedisTTL:          ttl,
	}
	return out, nil
}

func positiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %s", key, d)
	}
	return d, nil
}
