// Package poll drives the foreground polling of bus drivers from a
// framework Loop. It lives apart from databus so firmware builds of the
// driver do not pull in the loop and signal handling.
package poll

import (
	"context"

	"github.com/robotalks/databus/pkg/databus"
	fx "github.com/robotalks/databus/pkg/framework"
)

// ByteHandler consumes bytes picked up by a Poller.
type ByteHandler interface {
	HandleByte(ctx context.Context, src *databus.Driver, b byte)
}

// HandleByteFunc is func type of ByteHandler.
type HandleByteFunc func(ctx context.Context, src *databus.Driver, b byte)

// HandleByte implements ByteHandler.
func (f HandleByteFunc) HandleByte(ctx context.Context, src *databus.Driver, b byte) {
	f(ctx, src, b)
}

// Poller checks each driver's mailbox once per loop iteration.
type Poller struct {
	Drivers []*databus.Driver
	Handler ByteHandler
}

// New creates a Poller.
func New(h ByteHandler, drivers ...*databus.Driver) *Poller {
	return &Poller{Drivers: drivers, Handler: h}
}

// Control implements framework.Controller.
func (p *Poller) Control(cc fx.ControlContext) error {
	for _, d := range p.Drivers {
		if !d.IsByteReceived() {
			continue
		}
		if h := p.Handler; h != nil {
			h.HandleByte(cc.Context(), d, d.LastByte())
		}
	}
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (p *Poller) AddToLoop(l *fx.Loop) {
	l.AddController(p)
}
