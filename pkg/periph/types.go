package periph

// ID identifies a physical UART peripheral.
type ID uint8

// MaxPeripherals is the size of the ownership table.
const MaxPeripherals = 8

// Valid reports whether the ID fits in the ownership table.
func (id ID) Valid() bool {
	return int(id) < MaxPeripherals
}

// ReceiveHandler is invoked by a Binding once per received byte.
// It runs in the binding's receive context and must return quickly.
type ReceiveHandler interface {
	HandleReceive(b byte)
}

// ReceiveFunc is func type of ReceiveHandler.
type ReceiveFunc func(b byte)

// HandleReceive implements ReceiveHandler.
func (f ReceiveFunc) HandleReceive(b byte) {
	f(b)
}

// Binding is a UART with a half-duplex transceiver in front of it.
type Binding interface {
	// ID returns the identity of the underlying UART.
	ID() ID
	// Init programs the UART at baudRate. It is called once.
	Init(baudRate uint32) error
	// SetTransmit drives RE/DE into transmit mode.
	SetTransmit()
	// SetReceive drives RE/DE into receive mode.
	SetReceive()
	// TransmitByte blocks until the UART has accepted b.
	TransmitByte(b byte)
	// Attach installs the receive callback. Bindings accept a single handler.
	Attach(h ReceiveHandler)
}
