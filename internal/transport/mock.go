package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"
)

// TestableSerialPort implements TimeoutSerialPorter with configurable
// behaviour for testing. It captures writes and can inject errors, short
// writes and latency.
type TestableSerialPort struct {
	mu sync.Mutex

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// WriteLatency adds a delay to each Write call
	WriteLatency time.Duration

	// WriteError is returned by the next Write call if set
	WriteError error

	// ShortWrite makes the next Write report one byte fewer than requested
	ShortWrite bool

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// WriteCalls records the number of Write calls
	WriteCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	return &TestableSerialPort{WriteBuffer: bytes.NewBuffer(nil)}
}

// Read is unsupported; the collector never talks back.
func (p *TestableSerialPort) Read(b []byte) (int, error) {
	return 0, errors.New("read not supported")
}

// Write writes to the write buffer, optionally simulating latency and errors.
func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.WriteCalls++

	if p.Closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	if p.WriteLatency > 0 {
		p.mu.Unlock()
		time.Sleep(p.WriteLatency)
		p.mu.Lock()
	}
	if p.ShortWrite && len(b) > 0 {
		p.ShortWrite = false
		return p.WriteBuffer.Write(b[:len(b)-1])
	}
	return p.WriteBuffer.Write(b)
}

// Close marks the port as closed.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return p.CloseError
}

// SetReadTimeout implements TimeoutSerialPorter.
func (p *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadTimeout = timeout
	return nil
}

// Written returns all data written to the port.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.WriteBuffer.String()
}

// MockPortOpener records open calls and returns a fixed port or error. Its
// Open method satisfies PortOpener.
type MockPortOpener struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port SerialPorter

	// Error is returned by Open if set
	Error error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Mode *serial.Mode
}

// Open returns the configured port or error.
func (o *MockPortOpener) Open(path string, mode *serial.Mode) (SerialPorter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.OpenCalls = append(o.OpenCalls, MockOpenCall{Path: path, Mode: mode})
	if o.Error != nil {
		return nil, o.Error
	}
	return o.Port, nil
}

// FakeTransport is an in-memory Transport for exercising the replay logic.
type FakeTransport struct {
	mu sync.Mutex

	// TransportKind is reported by Kind.
	TransportKind Kind

	// Address is reported by Addr.
	Address string

	// OpenErrors are returned by successive Open calls; once exhausted Open
	// succeeds. AlwaysFailOpen overrides this.
	OpenErrors     []error
	AlwaysFailOpen error

	// FailWriteAt makes the Send of the line with this zero-based index fail
	// with WriteErr (or a generic error). Negative disables.
	FailWriteAt int
	WriteErr    error

	// OnSend is called with each line before it is recorded.
	OnSend func(index int, line string)

	OpenCalls  int
	CloseCalls int
	Lines      []string
	open       bool
}

// NewFakeTransport returns a FakeTransport of the given kind that opens and
// sends successfully.
func NewFakeTransport(kind Kind) *FakeTransport {
	return &FakeTransport{TransportKind: kind, FailWriteAt: -1}
}

func (f *FakeTransport) Kind() Kind { return f.TransportKind }

func (f *FakeTransport) Addr() string { return f.Address }

func (f *FakeTransport) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls++
	if err := ctx.Err(); err != nil {
		return &OpenError{Kind: f.TransportKind, Err: err}
	}
	if f.AlwaysFailOpen != nil {
		return &OpenError{Kind: f.TransportKind, Err: f.AlwaysFailOpen}
	}
	if len(f.OpenErrors) > 0 {
		err := f.OpenErrors[0]
		f.OpenErrors = f.OpenErrors[1:]
		if err != nil {
			return &OpenError{Kind: f.TransportKind, Err: err}
		}
	}
	f.open = true
	return nil
}

func (f *FakeTransport) Send(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return &WriteError{Kind: f.TransportKind, Err: ErrNotOpen}
	}
	idx := len(f.Lines)
	if f.OnSend != nil {
		f.OnSend(idx, line)
	}
	if f.FailWriteAt >= 0 && idx == f.FailWriteAt {
		err := f.WriteErr
		if err == nil {
			err = errors.New("broken pipe")
		}
		return &WriteError{Kind: f.TransportKind, Err: err}
	}
	f.Lines = append(f.Lines, line)
	return nil
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalls++
	f.open = false
	return nil
}

// IsOpen reports whether the fake is currently open.
func (f *FakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}
