package databus

// Direction is the electrical mode of the local transceiver.
type Direction uint32

const (
	// Receive is the idle mode: RE asserted, DE released.
	Receive Direction = iota
	// Transmit drives the line. Only held for the body of SendByte.
	Transmit
)

func (d Direction) String() string {
	switch d {
	case Receive:
		return "receive"
	case Transmit:
		return "transmit"
	default:
		return "unknown"
	}
}
