package config

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mockdaq/internal/live"
	"github.com/banshee-data/mockdaq/internal/monitoring"
	"github.com/banshee-data/mockdaq/internal/replay"
	"github.com/banshee-data/mockdaq/internal/transport"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	l := log.New(&buf, "", 0)
	monitoring.SetLogger(l.Printf)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
	return &buf
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, replay.Policy{Preferred: transport.KindSerial, AutoFallback: true}, cfg.Policy())

	nc := cfg.NetworkConfig()
	assert.Equal(t, "127.0.0.1:7878", nc.Addr())
	assert.Equal(t, 3, nc.MaxRetries)
	assert.Equal(t, 2*time.Second, nc.RetryDelay)
	assert.Equal(t, 10*time.Second, nc.Timeout)

	sc := cfg.SerialConfig()
	assert.Equal(t, 115200, sc.BaudRate)
	assert.Equal(t, 5*time.Second, sc.Timeout)
	assert.Equal(t, transport.DefaultSerialConfig(), sc)

	assert.Equal(t, live.DefaultConfig(), cfg.LiveConfig())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	logs := captureLogs(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Contains(t, logs.String(), "not found")
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "mockdaq.json", `{
  "preferred_transport": "wifi",
  "auto_fallback": false,
  "network": {"host": "10.0.0.5", "port": 9000, "timeout": 3, "max_retries": 5, "retry_delay": "250ms"},
  "serial": {"port": "/dev/ttyUSB3", "baud_rate": 9600, "timeout": "1.5s"}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, replay.Policy{Preferred: transport.KindNetwork, AutoFallback: false}, cfg.Policy())

	nc := cfg.NetworkConfig()
	assert.Equal(t, "10.0.0.5:9000", nc.Addr())
	assert.Equal(t, 3*time.Second, nc.Timeout)
	assert.Equal(t, 5, nc.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, nc.RetryDelay)

	sc := cfg.SerialConfig()
	assert.Equal(t, "/dev/ttyUSB3", sc.Port)
	assert.Equal(t, 9600, sc.BaudRate)
	assert.Equal(t, 1500*time.Millisecond, sc.Timeout)
	assert.Equal(t, 3, sc.MaxRetries)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "mockdaq.yml", `
preferred_transport: usb
network:
  port: 7000
  retry_delay: 0.5
serial:
  vendor_ids: ["1234"]
  description_hints: [teensy]
  max_retries: 1
  retry_delay: 0s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, transport.KindSerial, cfg.GetPreferredTransport())
	assert.True(t, cfg.GetAutoFallback())
	assert.Equal(t, 7000, cfg.NetworkConfig().Port)
	assert.Equal(t, 500*time.Millisecond, cfg.NetworkConfig().RetryDelay)

	sc := cfg.SerialConfig()
	assert.Equal(t, []string{"1234"}, sc.VendorIDs)
	assert.Equal(t, []string{"teensy"}, sc.DescriptionHints)
	assert.Equal(t, 1, sc.MaxRetries)
	assert.Zero(t, sc.RetryDelay)
}

func TestLoad_StructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		body  string
		field string
	}{
		{"unknown transport", "c.json", `{"preferred_transport": "bluetooth"}`, "preferred_transport"},
		{"port out of range", "c.json", `{"network": {"port": 70000}}`, "network.port"},
		{"port zero", "c.yaml", "network:\n  port: 0\n", "network.port"},
		{"json port not a number", "c.json", `{"network": {"port": "eighty"}}`, "network.port"},
		{"port not a number", "c.yaml", "network:\n  port: eighty\n", "network.port"},
		{"serial retries", "c.json", `{"serial": {"max_retries": 0}}`, "serial.max_retries"},
		{"network retries", "c.yaml", "network:\n  max_retries: -2\n", "network.max_retries"},
		{"live address scheme", "c.yaml", "live:\n  forward_addr: http://10.0.0.5:8080\n", "live.forward_addr"},
		{"live address missing", "c.json", `{"live": {"forward_addr": ""}}`, "live.forward_addr"},
		{"live tries", "c.json", `{"live": {"max_tries": -1}}`, "live.max_tries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "want ConfigError, got %T: %v", err, err)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.True(t, strings.HasPrefix(err.Error(), "config: "+tt.field))
		})
	}
}

func TestLoad_Live(t *testing.T) {
	path := writeConfig(t, "mockdaq.yaml", `
live:
  forward_addr: " wss://collector.example.com/ingest "
  max_tries: 0
  interval: 250ms
  retry_delay: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, live.Config{
		ForwardAddr: "wss://collector.example.com/ingest",
		MaxTries:    0,
		Interval:    250 * time.Millisecond,
		RetryDelay:  2 * time.Second,
	}, cfg.LiveConfig())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	logs := captureLogs(t)
	path := writeConfig(t, "c.json", `{
  "serial": {"baud_rate": -1, "timeout": -5},
  "network": {"host": "  ", "timeout": 0, "retry_delay": "-1s"},
  "live": {"interval": 0, "retry_delay": "-5s"}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	sc := cfg.SerialConfig()
	assert.Equal(t, 115200, sc.BaudRate)
	assert.Equal(t, 5*time.Second, sc.Timeout)

	nc := cfg.NetworkConfig()
	assert.Equal(t, "127.0.0.1", nc.Host)
	assert.Equal(t, 10*time.Second, nc.Timeout)
	assert.Equal(t, 2*time.Second, nc.RetryDelay)

	assert.Equal(t, live.DefaultConfig(), cfg.LiveConfig())

	for _, field := range []string{"serial.baud_rate", "serial.timeout", "network.host", "network.timeout", "network.retry_delay", "live.interval", "live.retry_delay"} {
		assert.Contains(t, logs.String(), field)
	}
}

func TestLoad_Rejects(t *testing.T) {
	t.Run("extension", func(t *testing.T) {
		_, err := Load(writeConfig(t, "c.toml", "x = 1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extension")
	})

	t.Run("too large", func(t *testing.T) {
		body := `{"preferred_transport": "usb"` + strings.Repeat(" ", maxFileSize) + `}`
		_, err := Load(writeConfig(t, "c.json", body))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Load(writeConfig(t, "c.yaml", "network: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeConfig(t, "c.json", `{"network": {"timeout": "soon"}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid duration "soon"`)
	})
}

func TestSerialConfig_DoesNotAliasFile(t *testing.T) {
	cfg := Default()
	cfg.Serial.VendorIDs = []string{"abcd"}

	sc := cfg.SerialConfig()
	sc.VendorIDs[0] = "ffff"
	assert.Equal(t, "abcd", cfg.Serial.VendorIDs[0])
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := Duration(1500 * time.Millisecond).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(b))
}

func TestLoad_ExampleFileMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "mockdaq.example.yaml"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Policy(), cfg.Policy())
	assert.Equal(t, def.SerialConfig(), cfg.SerialConfig())
	assert.Equal(t, def.NetworkConfig(), cfg.NetworkConfig())
	assert.Equal(t, def.LiveConfig(), cfg.LiveConfig())
}
