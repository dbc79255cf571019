//go:build databusdebug

package databus

import "go.uber.org/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	Received uint32 // bytes stored by HandleReceive
	Overruns uint32 // bytes that replaced an unpolled byte
	Sent     uint32 // completed SendByte calls
}

type stats struct {
	received atomic.Uint32
	overruns atomic.Uint32
	sent     atomic.Uint32
}

func (d *Driver) dbgReceive(overrun bool) {
	d.stats.received.Inc()
	if overrun {
		d.stats.overruns.Inc()
	}
}

func (d *Driver) dbgSend() {
	d.stats.sent.Inc()
}

// DebugStats returns a snapshot of the counters.
func (d *Driver) DebugStats() Stats {
	return Stats{
		Received: d.stats.received.Load(),
		Overruns: d.stats.overruns.Load(),
		Sent:     d.stats.sent.Load(),
	}
}

// DebugReset zeroes the counters.
func (d *Driver) DebugReset() {
	d.stats.received.Store(0)
	d.stats.overruns.Store(0)
	d.stats.sent.Store(0)
}
