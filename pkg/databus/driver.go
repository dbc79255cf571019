package databus

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
	"go.uber.org/atomic"

	"github.com/robotalks/databus/pkg/periph"
)

// Driver owns one UART binding and arbitrates the bus direction.
type Driver struct {
	name    string
	binding periph.Binding
	baud    uint32

	// Written by HandleReceive only. received is cleared by IsByteReceived only.
	lastByte atomic.Uint32
	received atomic.Bool

	dir      atomic.Uint32
	sendLock sync.Mutex

	stats stats
}

// Option customizes New.
type Option func(*options)

type options struct {
	name    string
	vectors *periph.Vectors
}

// WithName names the driver in logs and conflict errors.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithVectors claims the UART in vectors instead of periph.DefaultVectors.
func WithVectors(vectors *periph.Vectors) Option {
	return func(o *options) { o.vectors = vectors }
}

// New claims the binding's UART, programs it at baudRate, puts the bus into
// receive mode and attaches the driver as the receive handler.
//
// It fails without touching the peripheral if the UART is already owned.
// A UART claimed by a driver whose Init failed stays claimed.
func New(binding periph.Binding, baudRate uint32, opts ...Option) (*Driver, error) {
	o := options{vectors: periph.DefaultVectors}
	for _, opt := range opts {
		opt(&o)
	}
	id := binding.ID()
	if o.name == "" {
		o.name = fmt.Sprintf("databus@UART%d", id)
	}
	if baudRate == 0 {
		return nil, fmt.Errorf("%s: %w", o.name, periph.ErrInvalidBaudRate)
	}

	d := &Driver{name: o.name, binding: binding, baud: baudRate}
	if err := o.vectors.Claim(id, d.name, d); err != nil {
		return nil, err
	}
	if err := binding.Init(baudRate); err != nil {
		return nil, fmt.Errorf("%s: init UART%d: %w", d.name, id, err)
	}
	binding.SetReceive()
	d.dir.Store(uint32(Receive))
	binding.Attach(d)
	glog.V(2).Infof("%s: ready at %d baud", d.name, baudRate)
	return d, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return d.name
}

// ID returns the UART owned by the driver.
func (d *Driver) ID() periph.ID {
	return d.binding.ID()
}

// BaudRate returns the configured baud rate.
func (d *Driver) BaudRate() uint32 {
	return d.baud
}

// Direction returns the current transceiver mode.
func (d *Driver) Direction() Direction {
	return Direction(d.dir.Load())
}

// SendByte drives the bus, emits b and releases the bus. It blocks until the
// UART accepts the byte. Hardware failures are not reported; a UART that
// never becomes ready blocks SendByte forever.
func (d *Driver) SendByte(b byte) {
	d.sendLock.Lock()
	defer d.sendLock.Unlock()

	d.binding.SetTransmit()
	d.dir.Store(uint32(Transmit))
	d.binding.TransmitByte(b)
	d.binding.SetReceive()
	d.dir.Store(uint32(Receive))
	d.dbgSend()
}

// IsByteReceived reports whether a byte arrived since the previous call and
// clears the flag in the same atomic exchange.
func (d *Driver) IsByteReceived() bool {
	return d.received.Swap(false)
}

// LastByte returns the most recently received byte. It does not consume it;
// call IsByteReceived first to learn whether it is fresh.
func (d *Driver) LastByte() byte {
	return byte(d.lastByte.Load())
}

// HandleReceive implements periph.ReceiveHandler. It is called from the
// binding's receive context and only stores the byte and raises the flag.
func (d *Driver) HandleReceive(b byte) {
	d.lastByte.Store(uint32(b))
	d.dbgReceive(d.received.Swap(true))
}
