package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

func staticPorts(ports ...*enumerator.PortDetails) PortLister {
	return func() ([]*enumerator.PortDetails, error) { return ports, nil }
}

func TestSelectPort(t *testing.T) {
	defaults := DefaultSerialConfig()
	bluetooth := &enumerator.PortDetails{Name: "/dev/ttyS0", Product: "Bluetooth modem"}
	ftdi := &enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"}
	esp := &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "0x303a"}
	unknownUSB := &enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "ffff", Product: "CH340 serial converter"}
	hintOnly := &enumerator.PortDetails{Name: "COM3", Product: "Arduino Uno"}
	nonUSBVID := &enumerator.PortDetails{Name: "/dev/ttyS1", IsUSB: false, VID: "2341"}

	tests := []struct {
		name  string
		ports []*enumerator.PortDetails
		want  *enumerator.PortDetails
	}{
		{"empty", nil, nil},
		{"no match", []*enumerator.PortDetails{bluetooth}, nil},
		{"vendor id", []*enumerator.PortDetails{bluetooth, ftdi}, ftdi},
		{"vendor id with 0x prefix and lowercase", []*enumerator.PortDetails{esp}, esp},
		{"description hint", []*enumerator.PortDetails{bluetooth, unknownUSB}, unknownUSB},
		{"hint without usb", []*enumerator.PortDetails{hintOnly}, hintOnly},
		{"first match wins", []*enumerator.PortDetails{hintOnly, ftdi}, hintOnly},
		{"vid ignored on non-usb port", []*enumerator.PortDetails{nonUSBVID}, nil},
		{"nil entries skipped", []*enumerator.PortDetails{nil, ftdi}, ftdi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectPort(tt.ports, defaults.VendorIDs, defaults.DescriptionHints)
			if got != tt.want {
				t.Errorf("SelectPort() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSerialConfig_Mode(t *testing.T) {
	mode, err := SerialConfig{}.Mode()
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	mode, err = SerialConfig{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "e"}.Mode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 7, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	_, err = SerialConfig{DataBits: 9}.Mode()
	assert.Error(t, err)
	_, err = SerialConfig{StopBits: 3}.Mode()
	assert.Error(t, err)
	_, err = SerialConfig{Parity: "X"}.Mode()
	assert.Error(t, err)
}

func TestSerialTransport_OpenDiscovers(t *testing.T) {
	port := NewTestableSerialPort()
	opener := &MockPortOpener{Port: port}
	cfg := DefaultSerialConfig()

	tr := NewSerial(cfg,
		WithPortLister(staticPorts(
			&enumerator.PortDetails{Name: "/dev/ttyS0"},
			&enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4"},
		)),
		WithPortOpener(opener.Open),
	)

	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	require.Len(t, opener.OpenCalls, 1)
	assert.Equal(t, "/dev/ttyUSB0", opener.OpenCalls[0].Path)
	assert.Equal(t, 115200, opener.OpenCalls[0].Mode.BaudRate)
	assert.Equal(t, "/dev/ttyUSB0", tr.Addr())
	assert.Equal(t, 5*time.Second, port.ReadTimeout)
	assert.Equal(t, KindSerial, tr.Kind())
}

func TestSerialTransport_ExplicitPortSkipsDiscovery(t *testing.T) {
	opener := &MockPortOpener{Port: NewTestableSerialPort()}
	cfg := DefaultSerialConfig()
	cfg.Port = "/dev/ttyACM3"

	listed := false
	tr := NewSerial(cfg,
		WithPortLister(func() ([]*enumerator.PortDetails, error) {
			listed = true
			return nil, nil
		}),
		WithPortOpener(opener.Open),
	)

	require.NoError(t, tr.Open(context.Background()))
	assert.False(t, listed, "port enumeration should be skipped when a port is configured")
	assert.Equal(t, "/dev/ttyACM3", opener.OpenCalls[0].Path)
}

func TestSerialTransport_DeviceNotFound(t *testing.T) {
	opener := &MockPortOpener{Port: NewTestableSerialPort()}
	tr := NewSerial(DefaultSerialConfig(),
		WithPortLister(staticPorts(&enumerator.PortDetails{Name: "/dev/ttyS0", Product: "PCI serial"})),
		WithPortOpener(opener.Open),
	)

	err := tr.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	var oe *OpenError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, KindSerial, oe.Kind)
	assert.Empty(t, opener.OpenCalls)
}

func TestSerialTransport_EnumerationFailure(t *testing.T) {
	tr := NewSerial(DefaultSerialConfig(),
		WithPortLister(func() ([]*enumerator.PortDetails, error) {
			return nil, errors.New("udev unavailable")
		}),
	)

	err := tr.Open(context.Background())
	var oe *OpenError
	require.True(t, errors.As(err, &oe))
	assert.Contains(t, err.Error(), "udev unavailable")
}

func TestSerialTransport_OpenFailure(t *testing.T) {
	opener := &MockPortOpener{Error: errors.New("permission denied")}
	cfg := DefaultSerialConfig()
	cfg.Port = "/dev/ttyUSB0"
	tr := NewSerial(cfg, WithPortOpener(opener.Open))

	err := tr.Open(context.Background())
	var oe *OpenError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "/dev/ttyUSB0", oe.Addr)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestSerialTransport_CancelledContext(t *testing.T) {
	opener := &MockPortOpener{Port: NewTestableSerialPort()}
	tr := NewSerial(DefaultSerialConfig(), WithPortOpener(opener.Open))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, opener.OpenCalls)
}

func TestSerialTransport_Send(t *testing.T) {
	port := NewTestableSerialPort()
	cfg := DefaultSerialConfig()
	cfg.Port = "/dev/ttyUSB0"
	tr := NewSerial(cfg, WithPortOpener((&MockPortOpener{Port: port}).Open))
	require.NoError(t, tr.Open(context.Background()))

	require.NoError(t, tr.Send("1,2,3\n"))
	require.NoError(t, tr.Send("4,5,6"))
	assert.Equal(t, "1,2,3\n4,5,6\n", port.Written())
}

func TestSerialTransport_SendSlowDevice(t *testing.T) {
	port := NewTestableSerialPort()
	port.WriteLatency = 20 * time.Millisecond
	cfg := DefaultSerialConfig()
	cfg.Port = "/dev/ttyUSB0"
	tr := NewSerial(cfg, WithPortOpener((&MockPortOpener{Port: port}).Open))
	require.NoError(t, tr.Open(context.Background()))

	start := time.Now()
	require.NoError(t, tr.Send("1,2,3"))
	require.NoError(t, tr.Send("4,5,6"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, "1,2,3\n4,5,6\n", port.Written())
	assert.Equal(t, 2, port.WriteCalls)
}

func TestSerialTransport_SendErrors(t *testing.T) {
	port := NewTestableSerialPort()
	cfg := DefaultSerialConfig()
	cfg.Port = "/dev/ttyUSB0"
	tr := NewSerial(cfg, WithPortOpener((&MockPortOpener{Port: port}).Open))

	var we *WriteError
	err := tr.Send("before open")
	require.True(t, errors.As(err, &we))
	assert.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, tr.Open(context.Background()))

	port.WriteError = errors.New("device disconnected")
	err = tr.Send("x")
	require.True(t, errors.As(err, &we))
	assert.Equal(t, KindSerial, we.Kind)
	assert.Contains(t, err.Error(), "device disconnected")

	port.ShortWrite = true
	err = tr.Send("abc")
	assert.ErrorIs(t, err, ErrShortWrite)
}

func TestSerialTransport_CloseIdempotent(t *testing.T) {
	port := NewTestableSerialPort()
	cfg := DefaultSerialConfig()
	cfg.Port = "/dev/ttyUSB0"
	tr := NewSerial(cfg, WithPortOpener((&MockPortOpener{Port: port}).Open))

	assert.NoError(t, tr.Close(), "close before open")
	require.NoError(t, tr.Open(context.Background()))
	assert.NoError(t, tr.Close())
	assert.True(t, port.Closed)
	assert.NoError(t, tr.Close())
}
