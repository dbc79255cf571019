//go:build rp2040 || rp2350

// Package rp2 binds the PL011 UARTs of the RP2040/RP2350 to the databus
// driver. Each UART's interrupt is declared once in this package, and TinyGo
// refuses to build a program that declares a second handler for the same IRQ.
package rp2

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/interrupt"

	"github.com/robotalks/databus/pkg/periph"
)

// ErrPinsRequired is returned by Init when TX or RX is not set.
var ErrPinsRequired = errors.New("rp2: TX and RX pins required")

// UART is one PL011 instance with an optional driver-enable pin.
type UART struct {
	Bus *rp.UART0_Type

	id       periph.ID
	tx, rx   machine.Pin
	de       machine.Pin
	invertDE bool
	intr     interrupt.Interrupt
	handler  periph.ReceiveHandler
	rxErrors uint32
}

var (
	// UART0 is the first PL011. Pins must be set before use.
	UART0  = &_UART0
	_UART0 = UART{Bus: rp.UART0, id: 0, tx: machine.NoPin, rx: machine.NoPin, de: machine.NoPin}

	// UART1 is the second PL011. Pins must be set before use.
	UART1  = &_UART1
	_UART1 = UART{Bus: rp.UART1, id: 1, tx: machine.NoPin, rx: machine.NoPin, de: machine.NoPin}
)

func init() {
	UART0.intr = interrupt.New(rp.IRQ_UART0_IRQ, _UART0.handleInterrupt)
	UART1.intr = interrupt.New(rp.IRQ_UART1_IRQ, _UART1.handleInterrupt)
}

// SetPins selects the data pins and the transceiver DE pin. de may be
// machine.NoPin when the transceiver switches itself.
func (u *UART) SetPins(tx, rx, de machine.Pin, invertDE bool) {
	u.tx, u.rx, u.de, u.invertDE = tx, rx, de, invertDE
}

// ID implements periph.Binding.
func (u *UART) ID() periph.ID {
	return u.id
}

// RxErrors counts received bytes dropped for framing, parity, break or
// overrun errors.
func (u *UART) RxErrors() uint32 {
	return u.rxErrors
}

// Init implements periph.Binding. It resets the PL011, programs 8N1 at
// baudRate with FIFOs on and enables the receive interrupts.
func (u *UART) Init(baudRate uint32) error {
	if u.tx == machine.NoPin || u.rx == machine.NoPin {
		return ErrPinsRequired
	}
	u.reset()
	u.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	u.tx.Configure(machine.PinConfig{Mode: machine.PinUART})
	u.rx.Configure(machine.PinConfig{Mode: machine.PinUART})
	if u.de != machine.NoPin {
		u.de.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}

	u.setBaudRate(baudRate)
	u.Bus.UARTLCR_H.Set(3<<rp.UART0_UARTLCR_H_WLEN_Pos | rp.UART0_UARTLCR_H_FEN)

	u.Bus.UARTICR.Set(0x7FF)
	for !u.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		_ = u.Bus.UARTDR.Get()
	}
	u.Bus.UARTRSR.Set(0)

	u.Bus.UARTCR.Set(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)
	u.intr.SetPriority(0x80)
	u.intr.Enable()
	u.Bus.UARTIFLS.Set(0)
	u.Bus.UARTIMSC.Set(rp.UART0_UARTIMSC_RXIM | rp.UART0_UARTIMSC_RTIM)
	return nil
}

func (u *UART) reset() {
	var mask uint32 = rp.RESETS_RESET_UART0
	if u.Bus == rp.UART1 {
		mask = rp.RESETS_RESET_UART1
	}
	rp.RESETS.RESET.SetBits(mask)
	rp.RESETS.RESET.ClearBits(mask)
	for !rp.RESETS.RESET_DONE.HasBits(mask) {
	}
}

func (u *UART) setBaudRate(br uint32) {
	div := 8 * machine.CPUFrequency() / br
	ibrd, fbrd := div>>7, ((div&0x7f)+1)/2
	switch {
	case ibrd == 0:
		ibrd, fbrd = 1, 0
	case ibrd >= 65535:
		ibrd, fbrd = 65535, 0
	}
	u.Bus.UARTIBRD.Set(ibrd)
	u.Bus.UARTFBRD.Set(fbrd)
	// divisors latch on the next LCR_H write
	u.Bus.UARTLCR_H.Set(u.Bus.UARTLCR_H.Get())
}

func (u *UART) driveDE(transmit bool) {
	if u.de != machine.NoPin {
		u.de.Set(transmit != u.invertDE)
	}
}

// SetTransmit implements periph.Binding.
func (u *UART) SetTransmit() {
	u.driveDE(true)
}

// SetReceive implements periph.Binding.
func (u *UART) SetReceive() {
	u.driveDE(false)
}

// TransmitByte implements periph.Binding. It returns after the stop bit has
// left the shift register.
func (u *UART) TransmitByte(v byte) {
	for u.Bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFF) {
	}
	u.Bus.UARTDR.Set(uint32(v))
	for u.Bus.UARTFR.HasBits(rp.UART0_UARTFR_BUSY) {
	}
}

// Attach implements periph.Binding.
func (u *UART) Attach(h periph.ReceiveHandler) {
	u.handler = h
}

func (u *UART) handleInterrupt(interrupt.Interrupt) {
	mis := u.Bus.UARTMIS.Get()
	if mis&(rp.UART0_UARTMIS_RXMIS|rp.UART0_UARTMIS_RTMIS) == 0 {
		return
	}
	for !u.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		r := u.Bus.UARTDR.Get()
		if r&(rp.UART0_UARTDR_OE|rp.UART0_UARTDR_BE|rp.UART0_UARTDR_PE|rp.UART0_UARTDR_FE) != 0 {
			u.rxErrors++
			continue
		}
		if h := u.handler; h != nil {
			h.HandleReceive(byte(r))
		}
	}
	u.Bus.UARTICR.Set(rp.UART0_UARTICR_RXIC | rp.UART0_UARTICR_RTIC)
	u.Bus.UARTRSR.Set(0)
}
