// Package config loads the replay settings file. Every field is optional:
// the Get* accessors return the documented default for anything the file
// leaves out.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/mockdaq/internal/live"
	"github.com/banshee-data/mockdaq/internal/monitoring"
	"github.com/banshee-data/mockdaq/internal/replay"
	"github.com/banshee-data/mockdaq/internal/transport"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ConfigError reports a value that cannot be defaulted away. A run with a
// ConfigError never attempts a transport.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Duration accepts either a number of seconds (2, 0.5) or a Go duration
// string ("2s", "500ms").
type Duration time.Duration

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(d), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Port is a TCP port number. A YAML value that is not an integer is reported
// as a ConfigError on network.port.
type Port int

func (p *Port) UnmarshalYAML(node *yaml.Node) error {
	var v int
	if err := node.Decode(&v); err != nil {
		return &ConfigError{Field: "network.port", Err: fmt.Errorf("invalid port %q", node.Value)}
	}
	*p = Port(v)
	return nil
}

// SerialSection holds the USB serial settings.
type SerialSection struct {
	Port             *string   `json:"port,omitempty" yaml:"port,omitempty"`
	BaudRate         *int      `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	Timeout          *Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	VendorIDs        []string  `json:"vendor_ids,omitempty" yaml:"vendor_ids,omitempty"`
	DescriptionHints []string  `json:"description_hints,omitempty" yaml:"description_hints,omitempty"`
	MaxRetries       *int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RetryDelay       *Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
}

// NetworkSection holds the TCP settings.
type NetworkSection struct {
	Host       *string   `json:"host,omitempty" yaml:"host,omitempty"`
	Port       *Port     `json:"port,omitempty" yaml:"port,omitempty"`
	Timeout    *Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries *int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RetryDelay *Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
}

// LiveSection holds the WebSocket streaming settings used by the live
// command.
type LiveSection struct {
	ForwardAddr *string   `json:"forward_addr,omitempty" yaml:"forward_addr,omitempty"`
	MaxTries    *int      `json:"max_tries,omitempty" yaml:"max_tries,omitempty"`
	Interval    *Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	RetryDelay  *Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
}

// Config is the root of the settings file.
type Config struct {
	PreferredTransport *string        `json:"preferred_transport,omitempty" yaml:"preferred_transport,omitempty"`
	AutoFallback       *bool          `json:"auto_fallback,omitempty" yaml:"auto_fallback,omitempty"`
	Serial             SerialSection  `json:"serial" yaml:"serial"`
	Network            NetworkSection `json:"network" yaml:"network"`
	Live               LiveSection    `json:"live" yaml:"live"`
}

// Default returns a Config with nothing set; every accessor yields its
// default.
func Default() *Config {
	return &Config{}
}

// Load reads a JSON (.json) or YAML (.yaml, .yml) config file. An empty path
// or a missing file yields the defaults. Parse failures and structurally
// invalid values are errors.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if errors.Is(err, os.ErrNotExist) {
		monitoring.Logf("config file %s not found, using defaults", cleanPath)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return nil, cfgErr
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return nil, &ConfigError{Field: typeErr.Field, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the run cannot proceed with. Values that merely
// look wrong (a negative timeout, a zero baud rate) are left for the
// accessors to replace with defaults.
func (c *Config) Validate() error {
	if c.PreferredTransport != nil {
		if _, err := transport.ParseKind(*c.PreferredTransport); err != nil {
			return &ConfigError{Field: "preferred_transport", Err: err}
		}
	}
	if p := c.Network.Port; p != nil && (*p < 1 || *p > 65535) {
		return &ConfigError{Field: "network.port", Err: fmt.Errorf("port %d out of range 1-65535", *p)}
	}
	if r := c.Serial.MaxRetries; r != nil && *r < 1 {
		return &ConfigError{Field: "serial.max_retries", Err: fmt.Errorf("must be positive, got %d", *r)}
	}
	if r := c.Network.MaxRetries; r != nil && *r < 1 {
		return &ConfigError{Field: "network.max_retries", Err: fmt.Errorf("must be positive, got %d", *r)}
	}
	if a := c.Live.ForwardAddr; a != nil {
		if err := live.ValidateAddr(strings.TrimSpace(*a)); err != nil {
			return &ConfigError{Field: "live.forward_addr", Err: err}
		}
	}
	if n := c.Live.MaxTries; n != nil && *n < 0 {
		return &ConfigError{Field: "live.max_tries", Err: fmt.Errorf("must not be negative, got %d", *n)}
	}
	return nil
}

// GetPreferredTransport returns the preferred transport, serial by default.
func (c *Config) GetPreferredTransport() transport.Kind {
	if c.PreferredTransport == nil {
		return transport.KindSerial
	}
	k, err := transport.ParseKind(*c.PreferredTransport)
	if err != nil {
		return transport.KindSerial
	}
	return k
}

// GetAutoFallback returns the auto_fallback value or the default (true).
func (c *Config) GetAutoFallback() bool {
	if c.AutoFallback == nil {
		return true
	}
	return *c.AutoFallback
}

// Policy returns the transport policy for a run.
func (c *Config) Policy() replay.Policy {
	return replay.Policy{
		Preferred:    c.GetPreferredTransport(),
		AutoFallback: c.GetAutoFallback(),
	}
}

// SerialConfig resolves the serial section against the defaults.
func (c *Config) SerialConfig() transport.SerialConfig {
	sc := transport.DefaultSerialConfig()
	s := c.Serial
	if s.Port != nil {
		sc.Port = *s.Port
	}
	if s.BaudRate != nil {
		if *s.BaudRate > 0 {
			sc.BaudRate = *s.BaudRate
		} else {
			monitoring.Logf("config: serial.baud_rate %d invalid, using %d", *s.BaudRate, sc.BaudRate)
		}
	}
	sc.Timeout = positive("serial.timeout", s.Timeout, sc.Timeout)
	if len(s.VendorIDs) > 0 {
		sc.VendorIDs = append([]string(nil), s.VendorIDs...)
	}
	if len(s.DescriptionHints) > 0 {
		sc.DescriptionHints = append([]string(nil), s.DescriptionHints...)
	}
	if s.MaxRetries != nil {
		sc.MaxRetries = *s.MaxRetries
	}
	sc.RetryDelay = nonNegative("serial.retry_delay", s.RetryDelay, sc.RetryDelay)
	return sc
}

// NetworkConfig resolves the network section against the defaults.
func (c *Config) NetworkConfig() transport.NetworkConfig {
	nc := transport.DefaultNetworkConfig()
	n := c.Network
	if n.Host != nil {
		if h := strings.TrimSpace(*n.Host); h != "" {
			nc.Host = h
		} else {
			monitoring.Logf("config: network.host empty, using %s", nc.Host)
		}
	}
	if n.Port != nil {
		nc.Port = int(*n.Port)
	}
	nc.Timeout = positive("network.timeout", n.Timeout, nc.Timeout)
	if n.MaxRetries != nil {
		nc.MaxRetries = *n.MaxRetries
	}
	nc.RetryDelay = nonNegative("network.retry_delay", n.RetryDelay, nc.RetryDelay)
	return nc
}

// LiveConfig resolves the live section against the defaults.
func (c *Config) LiveConfig() live.Config {
	lc := live.DefaultConfig()
	l := c.Live
	if l.ForwardAddr != nil {
		lc.ForwardAddr = strings.TrimSpace(*l.ForwardAddr)
	}
	if l.MaxTries != nil {
		lc.MaxTries = *l.MaxTries
	}
	lc.Interval = positive("live.interval", l.Interval, lc.Interval)
	lc.RetryDelay = nonNegative("live.retry_delay", l.RetryDelay, lc.RetryDelay)
	return lc
}

func positive(field string, v *Duration, def time.Duration) time.Duration {
	if v == nil {
		return def
	}
	if *v <= 0 {
		monitoring.Logf("config: %s %s invalid, using %s", field, time.Duration(*v), def)
		return def
	}
	return time.Duration(*v)
}

func nonNegative(field string, v *Duration, def time.Duration) time.Duration {
	if v == nil {
		return def
	}
	if *v < 0 {
		monitoring.Logf("config: %s %s invalid, using %s", field, time.Duration(*v), def)
		return def
	}
	return time.Duration(*v)
}
