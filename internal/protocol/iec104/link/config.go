package link

import "time"

// Config bounds every wait the link performs.
type Config struct {
	StartTimeout time.Duration
	TestTimeout  time.Duration
	StopTimeout  time.Duration
	ReadTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		StartTimeout: 5 * time.Second,
		TestTimeout:  3 * time.Second,
		StopTimeout:  500 * time.Millisecond,
		ReadTimeout:  time.Second,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.StartTimeout <= 0 {
		c.StartTimeout = def.StartTimeout
	}
	if c.TestTimeout <= 0 {
		c.TestTimeout = def.TestTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = def.StopTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	return c
}
