package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// StationConfig is the iec104sim station file.
type StationConfig struct {
	Addr          string        `toml:"addr"`
	CommonAddress int           `toml:"common_address"`
	ConfirmStart  *bool         `toml:"confirm_start"`
	ConfirmTest   *bool         `toml:"confirm_test"`
	ConfirmStop   *bool         `toml:"confirm_stop"`
	SendActCon    *bool         `toml:"send_act_con"`
	SendActTerm   *bool         `toml:"send_act_term"`
	CommandCause  int           `toml:"command_cause"`
	CommandReject bool          `toml:"command_negative"`
	IgnoreCmds    bool          `toml:"ignore_commands"`
	HangupAfterGI bool          `toml:"close_after_interrogation"`
	ReplyDelayMS  int           `toml:"reply_delay_ms"`
	IdleTimeoutS  int           `toml:"idle_timeout_s"`
	Points        []PointConfig `toml:"points"`
}

// PointConfig is one [[points]] entry. Value is read according to Type:
// bool for single points, 0..3 for double points, integers for step,
// scaled and bitstring types, numbers for normalized and float types.
type PointConfig struct {
	IOA       uint32     `toml:"ioa"`
	Type      string     `toml:"type"`
	Value     any        `toml:"value"`
	Quality   []string   `toml:"quality"`
	Timestamp *time.Time `toml:"timestamp"`
}

func LoadStationConfig(path string) (StationConfig, error) {
	var cfg StationConfig
	if err := loadToml(path, &cfg); err != nil {
		return StationConfig{}, err
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = ":2404"
	}
	if cfg.CommonAddress == 0 {
		cfg.CommonAddress = 1
	}
	if err := ValidateStationConfig(cfg); err != nil {
		return StationConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateStationConfig(cfg StationConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("station config missing addr")
	}
	if cfg.CommonAddress < 1 || cfg.CommonAddress > 0xFFFF {
		return fmt.Errorf("station config common_address out of range: %d", cfg.CommonAddress)
	}
	if cfg.CommandCause < 0 || cfg.CommandCause > 0x3F {
		return fmt.Errorf("station config command_cause out of range: %d", cfg.CommandCause)
	}
	seen := make(map[uint32]bool, len(cfg.Points))
	for i, p := range cfg.Points {
		if _, err := p.point(); err != nil {
			return fmt.Errorf("points[%d] invalid: %w", i, err)
		}
		if seen[p.IOA] {
			return fmt.Errorf("points[%d] invalid: duplicate ioa %d", i, p.IOA)
		}
		seen[p.IOA] = true
	}
	return nil
}
