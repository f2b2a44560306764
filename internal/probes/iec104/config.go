package iec104

import (
	"time"

	"github.com/danmuck/wireprobe/internal/protocol/iec104/link"
)

// Config tunes the orchestrators. Request timeouts still bound every call.
type Config struct {
	Link           link.Config
	ConnectTimeout time.Duration
	CollectWindow  time.Duration
	CleanupTimeout time.Duration
	MaxObjects     int
	MaxFrames      int
}

func DefaultConfig() Config {
	return Config{
		Link:           link.DefaultConfig(),
		ConnectTimeout: 5 * time.Second,
		CollectWindow:  2 * time.Second,
		CleanupTimeout: time.Second,
		MaxObjects:     500,
		MaxFrames:      20,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.Link = c.Link.WithDefaults()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.CollectWindow <= 0 {
		c.CollectWindow = def.CollectWindow
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = def.CleanupTimeout
	}
	if c.MaxObjects <= 0 {
		c.MaxObjects = def.MaxObjects
	}
	if c.MaxFrames <= 0 {
		c.MaxFrames = def.MaxFrames
	}
	return c
}
