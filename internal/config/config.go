// Package config loads the geordonctl TOML file and resolves it into the
// typed configs each package consumes.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// File is the on-disk schema. Durations are Go duration strings.
type File struct {
	ConnectTimeout   string        `toml:"connect_timeout"`
	WriteTimeout     string        `toml:"write_timeout"`
	RowRetryInterval string        `toml:"row_retry_interval"`
	PollInterval     string        `toml:"poll_interval"`
	LogLevel         string        `toml:"log_level"`
	Admin            AdminFile     `toml:"admin"`
	Telemetry        TelemetryFile `toml:"telemetry"`
}

type AdminFile struct {
	ListenAddr  string   `toml:"listen_addr"`
	CORSOrigins []string `toml:"cors_origins"`
}

type TelemetryFile struct {
	Buffer            int    `toml:"buffer"`
	Feed              bool   `toml:"feed"`
	NATSURL           string `toml:"nats_url"`
	NATSSubjectPrefix string `toml:"nats_subject_prefix"`
	RedisAddr         string `toml:"redis_addr"`
	RedisKeyPrefix    string `toml:"redis_key_prefix"`
	RedisTTL          string `toml:"redis_ttl"`
}

func DefaultFile() File {
	return File{
		ConnectTimeout:   "5s",
		WriteTimeout:     "15s",
		RowRetryInterval: "5s",
		PollInterval:     "2ms",
		LogLevel:         "info",
		Admin: AdminFile{
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Telemetry: TelemetryFile{
			Buffer:            256,
			Feed:              true,
			NATSSubjectPrefix: "geordon",
			RedisKeyPrefix:    "geordon",
			RedisTTL:          "24h",
		},
	}
}

// Load decodes path over DefaultFile. An empty path returns the defaults.
// Keys the schema does not know are rejected.
func Load(path string) (File, error) {
	cfg := DefaultFile()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return File{}, fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}
