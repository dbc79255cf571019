package sim

import "sync"

// Line is a simulated shared wire. A byte emitted by one binding reaches every
// other binding on the line that is in receive mode.
type Line struct {
	taps       []*Binding
	collisions int
	lock       sync.Mutex
}

// NewLine creates an empty Line.
func NewLine() *Line {
	return &Line{}
}

// Connect attaches bindings to the line.
func (l *Line) Connect(bindings ...*Binding) *Line {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, b := range bindings {
		b.lock.Lock()
		b.line = l
		b.lock.Unlock()
		l.taps = append(l.taps, b)
	}
	return l
}

// Collisions counts bytes emitted while another tap was also driving the line.
func (l *Line) Collisions() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.collisions
}

func (l *Line) deliver(from *Binding, v byte) {
	l.lock.Lock()
	taps := append([]*Binding(nil), l.taps...)
	l.lock.Unlock()
	for _, tap := range taps {
		if tap == from {
			continue
		}
		if !tap.Fire(v) && tap.Transmitting() {
			l.lock.Lock()
			l.collisions++
			l.lock.Unlock()
		}
	}
}
