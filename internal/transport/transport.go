// Package transport provides the two channels samples can be replayed over:
// a USB serial device and a TCP socket. Both satisfy Transport so callers can
// drive either one without knowing which they hold.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a transport variant.
type Kind int

const (
	KindNone Kind = iota
	KindSerial
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindNetwork:
		return "network"
	default:
		return "none"
	}
}

// Alternate returns the other transport kind. KindNone has no alternate.
func (k Kind) Alternate() Kind {
	switch k {
	case KindSerial:
		return KindNetwork
	case KindNetwork:
		return KindSerial
	default:
		return KindNone
	}
}

// ParseKind maps a configured transport name onto a Kind. "usb" and "wifi"
// are the names used in the collector's configuration files.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "usb", "serial":
		return KindSerial, nil
	case "wifi", "network", "tcp":
		return KindNetwork, nil
	default:
		return KindNone, fmt.Errorf("unknown transport %q: expected usb or wifi", name)
	}
}

// Transport is a line-oriented channel to the collector.
//
// Open acquires the underlying device or socket. After a successful Open the
// caller owns the transport and must Close it on every exit path. Close is
// safe to call more than once and on a transport that never opened.
type Transport interface {
	Kind() Kind
	Open(ctx context.Context) error
	Send(line string) error
	Close() error
}

// Addresser is implemented by transports that can name the endpoint they
// opened: a device path or host:port.
type Addresser interface {
	Addr() string
}

// ErrDeviceNotFound is returned (wrapped in an OpenError) when serial
// discovery finds no port matching the configured vendor ids or hints.
var ErrDeviceNotFound = errors.New("no matching serial device found")

// ErrShortWrite reports a write that returned fewer bytes than requested.
var ErrShortWrite = errors.New("short write")

// ErrNotOpen is returned by Send on a transport that is not open.
var ErrNotOpen = errors.New("transport not open")

// OpenError reports a failed attempt to open a transport.
type OpenError struct {
	Kind Kind
	Addr string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s: open: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: open %s: %v", e.Kind, e.Addr, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// WriteError reports a failure while sending a line on an open transport.
type WriteError struct {
	Kind Kind
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write: %v", e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// withNewline ensures the line is newline terminated.
func withNewline(line string) string {
	if strings.HasSuffix(line, "\n") {
		return line
	}
	return line + "\n"
}
