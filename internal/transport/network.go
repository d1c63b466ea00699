package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"
)

// NetworkConfig describes the collector's TCP endpoint.
type NetworkConfig struct {
	Host    string        `json:"host"`
	Port    int           `json:"port"`
	Timeout time.Duration `json:"timeout"`

	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
}

// DefaultNetworkConfig returns the settings used when nothing is configured.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Host:       "127.0.0.1",
		Port:       7878,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// Addr returns host:port.
func (c NetworkConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ContextDialer is satisfied by *net.Dialer.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// NetworkTransport sends lines over a TCP stream.
type NetworkTransport struct {
	cfg    NetworkConfig
	dialer ContextDialer

	mu   sync.Mutex
	conn net.Conn
}

// NetworkOption customises a NetworkTransport.
type NetworkOption func(*NetworkTransport)

// WithDialer replaces the default dialer.
func WithDialer(d ContextDialer) NetworkOption {
	return func(t *NetworkTransport) { t.dialer = d }
}

// NewNetwork creates a TCP transport. Nothing is dialled until Open.
func NewNetwork(cfg NetworkConfig, opts ...NetworkOption) *NetworkTransport {
	t := &NetworkTransport{
		cfg: cfg,
		dialer: &net.Dialer{
			Timeout: cfg.Timeout,
			Control: reuseAddrControl,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *NetworkTransport) Kind() Kind { return KindNetwork }

// Addr returns the configured endpoint.
func (t *NetworkTransport) Addr() string { return t.cfg.Addr() }

// Open connects to host:port, bounded by the configured timeout.
func (t *NetworkTransport) Open(ctx context.Context) error {
	addr := t.cfg.Addr()
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &OpenError{Kind: KindNetwork, Addr: addr, Err: err}
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

// Send writes one line to the socket. There is no per-line deadline; a slow
// peer blocks for as long as the OS allows.
func (t *NetworkTransport) Send(line string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return &WriteError{Kind: KindNetwork, Err: ErrNotOpen}
	}

	line = withNewline(line)
	n, err := conn.Write([]byte(line))
	if err != nil {
		return &WriteError{Kind: KindNetwork, Err: err}
	}
	if n != len(line) {
		return &WriteError{Kind: KindNetwork, Err: ErrShortWrite}
	}
	return nil
}

// Close closes the socket.
func (t *NetworkTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
