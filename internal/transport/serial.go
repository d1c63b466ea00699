package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with timeout capabilities.
// go.bug.st/serial ports implement it.
type TimeoutSerialPorter interface {
	SerialPorter
	SetReadTimeout(timeout time.Duration) error
}

// PortLister enumerates the serial ports present on the host.
type PortLister func() ([]*enumerator.PortDetails, error)

// PortOpener opens the serial port at path with the given mode.
type PortOpener func(path string, mode *serial.Mode) (SerialPorter, error)

// SerialConfig describes how to find and open the collector's USB serial
// device.
type SerialConfig struct {
	// Port skips discovery and opens this path directly when set.
	Port string `json:"port,omitempty"`

	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`

	// VendorIDs are USB vendor ids (hex, e.g. "2341") accepted during
	// discovery. DescriptionHints are case-insensitive substrings matched
	// against the port's product description and name.
	VendorIDs        []string `json:"vendor_ids"`
	DescriptionHints []string `json:"description_hints"`

	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
}

// DefaultSerialConfig returns the settings used when nothing is configured.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  5 * time.Second,
		VendorIDs: []string{
			"2341", // Arduino
			"303A", // Espressif
			"10C4", // Silicon Labs CP210x
			"1A86", // WCH CH340
			"0403", // FTDI
		},
		DescriptionHints: []string{"arduino", "esp32", "cp210", "ch340", "usb serial"},
		MaxRetries:       3,
		RetryDelay:       2 * time.Second,
	}
}

// Mode validates the framing settings and converts them into the serial.Mode
// required by go.bug.st/serial. Unset values take 115200 8N1.
func (c SerialConfig) Mode() (*serial.Mode, error) {
	baud := c.BaudRate
	if baud <= 0 {
		baud = 115200
	}
	dataBits := c.DataBits
	if dataBits == 0 {
		dataBits = 8
	}
	if dataBits < 5 || dataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d: must be between 5 and 8", dataBits)
	}

	mode := &serial.Mode{BaudRate: baud, DataBits: dataBits}

	switch c.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", c.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(c.Parity)) {
	case "", "N", "NONE":
		mode.Parity = serial.NoParity
	case "E", "EVEN":
		mode.Parity = serial.EvenParity
	case "O", "ODD":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unsupported parity %q: expected N, E, or O", c.Parity)
	}

	return mode, nil
}

// SerialTransport sends lines to a USB serial device found by discovery.
type SerialTransport struct {
	cfg    SerialConfig
	list   PortLister
	opener PortOpener

	mu   sync.Mutex
	port SerialPorter
	path string
}

// SerialOption customises a SerialTransport.
type SerialOption func(*SerialTransport)

// WithPortLister replaces the host port enumeration.
func WithPortLister(l PortLister) SerialOption {
	return func(t *SerialTransport) { t.list = l }
}

// WithPortOpener replaces serial.Open.
func WithPortOpener(o PortOpener) SerialOption {
	return func(t *SerialTransport) { t.opener = o }
}

// NewSerial creates a serial transport. Nothing is opened until Open.
func NewSerial(cfg SerialConfig, opts ...SerialOption) *SerialTransport {
	t := &SerialTransport{
		cfg:  cfg,
		list: enumerator.GetDetailedPortsList,
		opener: func(path string, mode *serial.Mode) (SerialPorter, error) {
			return serial.Open(path, mode)
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *SerialTransport) Kind() Kind { return KindSerial }

// Addr returns the device path chosen by the last successful Open.
func (t *SerialTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.path
}

// Open discovers the device and opens it at the configured baud rate.
func (t *SerialTransport) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &OpenError{Kind: KindSerial, Err: err}
	}

	mode, err := t.cfg.Mode()
	if err != nil {
		return &OpenError{Kind: KindSerial, Err: err}
	}

	path := t.cfg.Port
	if path == "" {
		ports, err := t.list()
		if err != nil {
			return &OpenError{Kind: KindSerial, Err: fmt.Errorf("failed to enumerate serial ports: %w", err)}
		}
		p := SelectPort(ports, t.cfg.VendorIDs, t.cfg.DescriptionHints)
		if p == nil {
			return &OpenError{Kind: KindSerial, Err: ErrDeviceNotFound}
		}
		path = p.Name
	}

	port, err := t.opener(path, mode)
	if err != nil {
		return &OpenError{Kind: KindSerial, Addr: path, Err: err}
	}
	if tp, ok := port.(TimeoutSerialPorter); ok && t.cfg.Timeout > 0 {
		if err := tp.SetReadTimeout(t.cfg.Timeout); err != nil {
			port.Close()
			return &OpenError{Kind: KindSerial, Addr: path, Err: fmt.Errorf("failed to set timeout: %w", err)}
		}
	}

	t.mu.Lock()
	t.port = port
	t.path = path
	t.mu.Unlock()
	return nil
}

// Send writes one line synchronously.
func (t *SerialTransport) Send(line string) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return &WriteError{Kind: KindSerial, Err: ErrNotOpen}
	}

	line = withNewline(line)
	n, err := port.Write([]byte(line))
	if err != nil {
		return &WriteError{Kind: KindSerial, Err: err}
	}
	if n != len(line) {
		return &WriteError{Kind: KindSerial, Err: ErrShortWrite}
	}
	return nil
}

// Close releases the device handle.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	port := t.port
	t.port = nil
	t.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

// SelectPort returns the first port whose USB vendor id is in vendorIDs or
// whose product description or name contains one of hints (case-insensitive).
// It returns nil when nothing matches.
func SelectPort(ports []*enumerator.PortDetails, vendorIDs, hints []string) *enumerator.PortDetails {
	for _, p := range ports {
		if p == nil {
			continue
		}
		if p.IsUSB && matchesVendor(p.VID, vendorIDs) {
			return p
		}
		if matchesHint(p, hints) {
			return p
		}
	}
	return nil
}

func matchesVendor(vid string, vendorIDs []string) bool {
	vid = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(vid)), "0x")
	if vid == "" {
		return false
	}
	for _, want := range vendorIDs {
		if strings.TrimPrefix(strings.ToLower(strings.TrimSpace(want)), "0x") == vid {
			return true
		}
	}
	return false
}

func matchesHint(p *enumerator.PortDetails, hints []string) bool {
	desc := strings.ToLower(p.Product + " " + p.Name)
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && strings.Contains(desc, h) {
			return true
		}
	}
	return false
}
