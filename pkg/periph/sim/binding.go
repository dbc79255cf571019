// Package sim provides an in-memory UART binding that records every
// direction change and emitted byte, and a Line that wires several bindings
// into a simulated multi-drop bus.
package sim

import (
	"errors"
	"sync"

	"github.com/robotalks/databus/pkg/periph"
)

// EventKind is the kind of a recorded Event.
type EventKind int

// Recorded events.
const (
	EventInit EventKind = iota
	EventTransmit
	EventReceive
	EventEmit
)

func (k EventKind) String() string {
	switch k {
	case EventInit:
		return "init"
	case EventTransmit:
		return "transmit"
	case EventReceive:
		return "receive"
	case EventEmit:
		return "emit"
	default:
		return "unknown"
	}
}

// Event is one call recorded by the Binding.
type Event struct {
	Kind EventKind
	// Byte is set for EventEmit.
	Byte byte
	// Transmitting is the direction at the time of the event, after it applied.
	Transmitting bool
	// Baud is set for EventInit.
	Baud uint32
}

// ErrInitFailed is returned by Init when FailInit is set.
var ErrInitFailed = errors.New("sim: init failed")

// Binding is an in-memory periph.Binding.
type Binding struct {
	// FailInit makes Init fail.
	FailInit bool
	// Ready, when set, gates TransmitByte: each byte waits for one token.
	Ready chan struct{}
	// Echo loops each emitted byte back into the binding's own receiver.
	Echo bool

	id           periph.ID
	line         *Line
	events       []Event
	transmitting bool
	baud         uint32
	handler      periph.ReceiveHandler
	lock         sync.Mutex
}

// New creates a Binding for UART id.
func New(id periph.ID) *Binding {
	return &Binding{id: id}
}

// ID implements periph.Binding.
func (b *Binding) ID() periph.ID {
	return b.id
}

// Init implements periph.Binding.
func (b *Binding) Init(baudRate uint32) error {
	if b.FailInit {
		return ErrInitFailed
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	b.baud = baudRate
	b.events = append(b.events, Event{Kind: EventInit, Baud: baudRate, Transmitting: b.transmitting})
	return nil
}

// SetTransmit implements periph.Binding.
func (b *Binding) SetTransmit() {
	b.setDirection(true, EventTransmit)
}

// SetReceive implements periph.Binding.
func (b *Binding) SetReceive() {
	b.setDirection(false, EventReceive)
}

func (b *Binding) setDirection(transmitting bool, kind EventKind) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.transmitting = transmitting
	b.events = append(b.events, Event{Kind: kind, Transmitting: transmitting})
}

// TransmitByte implements periph.Binding.
func (b *Binding) TransmitByte(v byte) {
	if ready := b.Ready; ready != nil {
		<-ready
	}
	b.lock.Lock()
	b.events = append(b.events, Event{Kind: EventEmit, Byte: v, Transmitting: b.transmitting})
	line := b.line
	b.lock.Unlock()
	if line != nil {
		line.deliver(b, v)
	}
	if b.Echo {
		b.Fire(v)
	}
}

// Attach implements periph.Binding. It panics if a handler is already attached.
func (b *Binding) Attach(h periph.ReceiveHandler) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.handler != nil {
		panic("sim: receive handler already attached")
	}
	b.handler = h
}

// Fire simulates the receive-complete interrupt. The byte is lost, and false
// returned, when the binding is transmitting or has no handler.
func (b *Binding) Fire(v byte) bool {
	b.lock.Lock()
	h, transmitting := b.handler, b.transmitting
	b.lock.Unlock()
	if h == nil || transmitting {
		return false
	}
	h.HandleReceive(v)
	return true
}

// Events returns a copy of the recorded events.
func (b *Binding) Events() []Event {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Event(nil), b.events...)
}

// Emitted returns the bytes passed to TransmitByte, in order.
func (b *Binding) Emitted() []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	var out []byte
	for _, ev := range b.events {
		if ev.Kind == EventEmit {
			out = append(out, ev.Byte)
		}
	}
	return out
}

// Reset clears the recorded events.
func (b *Binding) Reset() {
	b.lock.Lock()
	b.events = nil
	b.lock.Unlock()
}

// Transmitting reports whether the binding currently drives the line.
func (b *Binding) Transmitting() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.transmitting
}

// Baud returns the rate passed to Init.
func (b *Binding) Baud() uint32 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.baud
}
