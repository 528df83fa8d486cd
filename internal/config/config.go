// Package config loads the controller daemon configuration from TOML.
// Every field has a default; the file only states overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Link modes for the credential stream.
const (
	LinkJSON   = "json"
	LinkBinary = "binary"
)

// Config is the resolved daemon configuration.
type Config struct {
	// StorePath is where the credentials image is persisted.
	StorePath string
	// Device is the stream endpoint: a serial device path, or "-" for
	// stdin/stdout.
	Device string
	// InputDevice is an optional local input endpoint (FIFO or tty)
	// carrying raw keypad levels and card reads. Empty disables it.
	InputDevice string
	// LinkMode selects the stream encoding: LinkJSON or LinkBinary.
	LinkMode string

	// Timing knobs, milliseconds.
	PinTimeoutMS uint32
	UnlockHoldMS uint32
	LockoutMS    uint32
	MaxFails     int
	TickPeriodMS uint32

	// Keypad debounce windows, milliseconds.
	KeyScanMS      uint32
	KeyStabilityMS uint32
	RfidRepeatMS   uint32

	BuzzerEnabled bool
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		StorePath:      "lockcore.store",
		Device:         "-",
		LinkMode:       LinkJSON,
		PinTimeoutMS:   6000,
		UnlockHoldMS:   5000,
		LockoutMS:      30000,
		MaxFails:       5,
		TickPeriodMS:   10,
		KeyScanMS:      20,
		KeyStabilityMS: 40,
		RfidRepeatMS:   1200,
		BuzzerEnabled:  true,
	}
}

type fileConfig struct {
	StorePath      string `toml:"store_path"`
	Device         string `toml:"device"`
	InputDevice    string `toml:"input_device"`
	LinkMode       string `toml:"link_mode"`
	PinTimeoutMS   int64  `toml:"pin_timeout_ms"`
	UnlockHoldMS   int64  `toml:"unlock_hold_ms"`
	LockoutMS      int64  `toml:"lockout_ms"`
	MaxFails       int    `toml:"max_fails"`
	TickPeriodMS   int64  `toml:"tick_period_ms"`
	KeyScanMS      int64  `toml:"key_scan_ms"`
	KeyStabilityMS int64  `toml:"key_stability_ms"`
	RfidRepeatMS   int64  `toml:"rfid_repeat_ms"`
	BuzzerEnabled  bool   `toml:"buzzer"`
}

// Load reads path and applies its overrides on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load lockd config: %w", err)
	}

	if meta.IsDefined("store_path") {
		if p := strings.TrimSpace(raw.StorePath); p != "" {
			cfg.StorePath = p
		}
	}
	if meta.IsDefined("device") {
		if d := strings.TrimSpace(raw.Device); d != "" {
			cfg.Device = d
		}
	}
	if meta.IsDefined("input_device") {
		cfg.InputDevice = strings.TrimSpace(raw.InputDevice)
	}
	if meta.IsDefined("link_mode") {
		cfg.LinkMode = strings.ToLower(strings.TrimSpace(raw.LinkMode))
	}
	if meta.IsDefined("pin_timeout_ms") {
		cfg.PinTimeoutMS = uint32(raw.PinTimeoutMS)
	}
	if meta.IsDefined("unlock_hold_ms") {
		cfg.UnlockHoldMS = uint32(raw.UnlockHoldMS)
	}
	if meta.IsDefined("lockout_ms") {
		cfg.LockoutMS = uint32(raw.LockoutMS)
	}
	if meta.IsDefined("max_fails") {
		cfg.MaxFails = raw.MaxFails
	}
	if meta.IsDefined("tick_period_ms") {
		cfg.TickPeriodMS = uint32(raw.TickPeriodMS)
	}
	if meta.IsDefined("key_scan_ms") {
		cfg.KeyScanMS = uint32(raw.KeyScanMS)
	}
	if meta.IsDefined("key_stability_ms") {
		cfg.KeyStabilityMS = uint32(raw.KeyStabilityMS)
	}
	if meta.IsDefined("rfid_repeat_ms") {
		cfg.RfidRepeatMS = uint32(raw.RfidRepeatMS)
	}
	if meta.IsDefined("buzzer") {
		cfg.BuzzerEnabled = raw.BuzzerEnabled
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.StorePath) == "" {
		return fmt.Errorf("config: store_path is required")
	}
	if strings.TrimSpace(c.Device) == "" {
		return fmt.Errorf("config: device is required")
	}
	if c.LinkMode != LinkJSON && c.LinkMode != LinkBinary {
		return fmt.Errorf("config: link_mode must be %q or %q, got %q",
			LinkJSON, LinkBinary, c.LinkMode)
	}
	if c.MaxFails < 1 {
		return fmt.Errorf("config: max_fails must be at least 1")
	}
	if c.TickPeriodMS < 1 {
		return fmt.Errorf("config: tick_period_ms must be at least 1")
	}
	if c.PinTimeoutMS == 0 || c.UnlockHoldMS == 0 || c.LockoutMS == 0 {
		return fmt.Errorf("config: timing values must be non-zero")
	}
	return nil
}
