package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/robotalks/databus/pkg/databus"
	"github.com/robotalks/databus/pkg/periph"
)

type fakePort struct {
	readCh  chan []byte
	closeCh chan struct{}
	timeout time.Duration
	mode    *serial.Mode
	ops     []string
	lock    sync.Mutex
}

func newFakePort() *fakePort {
	return &fakePort{readCh: make(chan []byte, 4), closeCh: make(chan struct{})}
}

func (p *fakePort) record(op string) {
	p.lock.Lock()
	p.ops = append(p.ops, op)
	p.lock.Unlock()
}

func (p *fakePort) Ops() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.ops...)
}

func (p *fakePort) Read(buf []byte) (int, error) {
	select {
	case data := <-p.readCh:
		return copy(buf, data), nil
	case <-p.closeCh:
		return 0, io.EOF
	case <-time.After(p.timeout):
		return 0, nil
	}
}

func (p *fakePort) Write(buf []byte) (int, error) {
	p.record(fmt.Sprintf("write %02x", buf))
	return len(buf), nil
}

func (p *fakePort) Close() error {
	close(p.closeCh)
	return nil
}

func (p *fakePort) SetMode(mode *serial.Mode) error {
	p.mode = mode
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) SetRTS(rts bool) error {
	p.record(fmt.Sprintf("rts %v", rts))
	return nil
}

func (p *fakePort) Drain() error {
	p.record("drain")
	return nil
}

func newTestBinding(port *fakePort, cfg Config) *Binding {
	cfg.Device = "/dev/ttyTEST"
	cfg.ReadTimeout = 5 * time.Millisecond
	cfg.Open = func(device string, mode *serial.Mode) (Port, error) {
		port.mode = mode
		return port, nil
	}
	return New(cfg)
}

func TestSendByteOverRTS(t *testing.T) {
	port := newFakePort()
	b := newTestBinding(port, Config{ID: 1})
	d, err := databus.New(b, 9600, databus.WithVectors(periph.NewVectors()))
	require.NoError(t, err)
	require.Equal(t, 9600, port.mode.BaudRate)
	require.Equal(t, 8, port.mode.DataBits)
	require.Equal(t, serial.NoParity, port.mode.Parity)
	require.Equal(t, serial.OneStopBit, port.mode.StopBits)

	d.SendByte(0x7e)
	require.Equal(t, []string{
		"rts false",
		"rts true",
		"write 7e",
		"drain",
		"rts false",
	}, port.Ops())
}

func TestInvertedRTS(t *testing.T) {
	port := newFakePort()
	b := newTestBinding(port, Config{InvertRTS: true})
	require.NoError(t, b.Init(115200))
	b.SetTransmit()
	b.SetReceive()
	require.Equal(t, []string{"rts false", "rts true"}, port.Ops())
}

func TestGPIOLine(t *testing.T) {
	port := newFakePort()
	pin := &gpiotest.Pin{N: "DE", L: gpio.Low}
	b := newTestBinding(port, Config{Line: &GPIOLine{Pin: pin}})
	require.NoError(t, b.Init(9600))

	b.SetTransmit()
	require.Equal(t, gpio.High, pin.Read())
	b.SetReceive()
	require.Equal(t, gpio.Low, pin.Read())
	require.Empty(t, port.Ops(), "RTS untouched when a GPIO line is used")
}

func TestRunDeliversBytes(t *testing.T) {
	port := newFakePort()
	b := newTestBinding(port, Config{})
	d, err := databus.New(b, 9600, databus.WithVectors(periph.NewVectors()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	port.readCh <- []byte{0x41}
	require.Eventually(t, d.IsByteReceived, time.Second, time.Millisecond)
	require.Equal(t, byte(0x41), d.LastByte())

	port.readCh <- []byte{0x10, 0x20}
	require.Eventually(t, func() bool { return d.LastByte() == 0x20 }, time.Second, time.Millisecond)
	require.True(t, d.IsByteReceived())
	require.False(t, d.IsByteReceived())

	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunStopsOnPortError(t *testing.T) {
	port := newFakePort()
	b := newTestBinding(port, Config{})
	b.Attach(periph.ReceiveFunc(func(byte) {}))
	require.NoError(t, b.Init(9600))

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()
	require.NoError(t, b.Close())
	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, io.EOF))
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestInitOpenFailure(t *testing.T) {
	failure := errors.New("no such device")
	b := New(Config{Device: "/dev/missing", Open: func(string, *serial.Mode) (Port, error) {
		return nil, failure
	}})
	err := b.Init(9600)
	require.True(t, errors.Is(err, failure))
	require.Contains(t, err.Error(), "/dev/missing")
}
