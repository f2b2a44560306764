package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/wireprobe/internal/probes/iec104"
	"github.com/danmuck/wireprobe/internal/server"
)

// probectl config.toml key mapping to runtime settings.
type fileConfig struct {
	ID          string           `toml:"id"`
	Addr        string           `toml:"addr"`
	CorsOrigins []string         `toml:"cors_origins"`
	IEC104      iec104FileConfig `toml:"iec104"`
}

type iec104FileConfig struct {
	ConnectTimeoutMS int `toml:"connect_timeout_ms"`
	StartTimeoutMS   int `toml:"start_timeout_ms"`
	TestTimeoutMS    int `toml:"test_timeout_ms"`
	StopTimeoutMS    int `toml:"stop_timeout_ms"`
	ReadTimeoutMS    int `toml:"read_timeout_ms"`
	CollectWindowMS  int `toml:"collect_window_ms"`
	MaxObjects       int `toml:"max_objects"`
	MaxFrames        int `toml:"max_frames"`
}

type runtimeConfig struct {
	Server server.Config
	IEC104 iec104.Config
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		Server: server.DefaultConfig(),
		IEC104: iec104.DefaultConfig(),
	}
}

// loadRuntimeConfig overlays the file on defaults. A missing file yields
// the defaults unchanged.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load probectl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return runtimeConfig{}, fmt.Errorf("load probectl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("id") {
		cfg.Server.NodeID = strings.TrimSpace(raw.ID)
	}
	if meta.IsDefined("addr") {
		cfg.Server.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.Server.CORSOrigins = raw.CorsOrigins
	}

	ms := func(key string, v int, dst *time.Duration) {
		if meta.IsDefined("iec104", key) {
			*dst = time.Duration(v) * time.Millisecond
		}
	}
	ms("connect_timeout_ms", raw.IEC104.ConnectTimeoutMS, &cfg.IEC104.ConnectTimeout)
	ms("start_timeout_ms", raw.IEC104.StartTimeoutMS, &cfg.IEC104.Link.StartTimeout)
	ms("test_timeout_ms", raw.IEC104.TestTimeoutMS, &cfg.IEC104.Link.TestTimeout)
	ms("stop_timeout_ms", raw.IEC104.StopTimeoutMS, &cfg.IEC104.Link.StopTimeout)
	ms("read_timeout_ms", raw.IEC104.ReadTimeoutMS, &cfg.IEC104.Link.ReadTimeout)
	ms("collect_window_ms", raw.IEC104.CollectWindowMS, &cfg.IEC104.CollectWindow)
	if meta.IsDefined("iec104", "max_objects") {
		cfg.IEC104.MaxObjects = raw.IEC104.MaxObjects
	}
	if meta.IsDefined("iec104", "max_frames") {
		cfg.IEC104.MaxFrames = raw.IEC104.MaxFrames
	}

	if strings.TrimSpace(cfg.Server.NodeID) == "" {
		return runtimeConfig{}, fmt.Errorf("load probectl config: id must not be empty")
	}
	if strings.TrimSpace(cfg.Server.ListenAddr) == "" {
		return runtimeConfig{}, fmt.Errorf("load probectl config: addr must not be empty")
	}
	if cfg.IEC104.MaxObjects < 0 || cfg.IEC104.MaxFrames < 0 {
		return runtimeConfig{}, fmt.Errorf("load probectl config: iec104 limits must not be negative")
	}
	cfg.IEC104 = cfg.IEC104.WithDefaults()
	return cfg, nil
}
