// Package serialport binds the bus driver to a host serial device with an
// RS-485 transceiver, using go.bug.st/serial.
//
// The transceiver direction follows RTS unless a GPIO line is configured.
// A reader goroutine started by Run stands in for the receive interrupt.
package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/robotalks/databus/pkg/periph"
)

// Port is the subset of serial.Port used by the binding.
type Port interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	SetRTS(rts bool) error
	Drain() error
}

// OpenFunc opens a serial device.
type OpenFunc func(device string, mode *serial.Mode) (Port, error)

// DefaultReadTimeout bounds how long the reader blocks before checking for
// cancellation.
const DefaultReadTimeout = 50 * time.Millisecond

// Config configures a Binding.
type Config struct {
	ID     periph.ID
	Device string
	// Line drives RE/DE. Nil uses RTS of the port.
	Line DirectionLine
	// InvertRTS inverts the RTS level when Line is nil.
	InvertRTS   bool
	ReadTimeout time.Duration
	// Open overrides serial.Open.
	Open OpenFunc
}

// Binding is a periph.Binding over a host serial device.
type Binding struct {
	cfg     Config
	port    Port
	line    DirectionLine
	handler periph.ReceiveHandler
	ready   chan struct{}
	lock    sync.Mutex
}

// ErrNotInitialized is returned by Run before Init succeeded.
var ErrNotInitialized = errors.New("serial binding not initialized")

// New creates a Binding. The device is opened by Init.
func New(cfg Config) *Binding {
	if cfg.Open == nil {
		cfg.Open = openSerial
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &Binding{cfg: cfg, ready: make(chan struct{})}
}

func openSerial(device string, mode *serial.Mode) (Port, error) {
	return serial.Open(device, mode)
}

// Name implements framework.Named.
func (b *Binding) Name() string {
	return "serial:" + b.cfg.Device
}

// ID implements periph.Binding.
func (b *Binding) ID() periph.ID {
	return b.cfg.ID
}

// Init implements periph.Binding. It opens the device at 8N1.
func (b *Binding) Init(baudRate uint32) error {
	mode := &serial.Mode{
		BaudRate: int(baudRate),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := b.cfg.Open(b.cfg.Device, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", b.cfg.Device, err)
	}
	if err = port.SetReadTimeout(b.cfg.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout on %s: %w", b.cfg.Device, err)
	}
	line := b.cfg.Line
	if line == nil {
		line = &RTSLine{Port: port, Invert: b.cfg.InvertRTS}
	}
	b.lock.Lock()
	b.port, b.line = port, line
	b.lock.Unlock()
	close(b.ready)
	glog.V(2).Infof("%s: opened at %d baud", b.Name(), baudRate)
	return nil
}

// SetTransmit implements periph.Binding.
func (b *Binding) SetTransmit() {
	if err := b.line.Set(true); err != nil {
		glog.Warningf("%s: set transmit: %v", b.Name(), err)
	}
}

// SetReceive implements periph.Binding.
func (b *Binding) SetReceive() {
	if err := b.line.Set(false); err != nil {
		glog.Warningf("%s: set receive: %v", b.Name(), err)
	}
}

// TransmitByte implements periph.Binding. It returns once the byte has been
// drained from the OS and UART buffers, so the caller may release the line.
func (b *Binding) TransmitByte(v byte) {
	buf := []byte{v}
	for {
		n, err := b.port.Write(buf)
		if err != nil {
			glog.Warningf("%s: write: %v", b.Name(), err)
			return
		}
		if n == 1 {
			break
		}
	}
	if err := b.port.Drain(); err != nil {
		glog.Warningf("%s: drain: %v", b.Name(), err)
	}
}

// Attach implements periph.Binding.
func (b *Binding) Attach(h periph.ReceiveHandler) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.handler != nil {
		glog.Warningf("%s: receive handler already attached, ignored", b.Name())
		return
	}
	b.handler = h
}

// Run reads the device and delivers every byte to the attached handler until
// ctx is done or the port fails. It implements framework.Runnable.
func (b *Binding) Run(ctx context.Context) error {
	select {
	case <-b.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.lock.Lock()
	port, h := b.port, b.handler
	b.lock.Unlock()
	if h == nil {
		return ErrNotInitialized
	}

	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := port.Read(buf)
		for _, v := range buf[:n] {
			h.HandleReceive(v)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read %s: %w", b.cfg.Device, err)
		}
	}
}

// Close closes the device.
func (b *Binding) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.port == nil {
		return nil
	}
	return b.port.Close()
}
