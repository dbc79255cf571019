package serialport

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DirectionLine drives the RE/DE input of the transceiver.
type DirectionLine interface {
	Set(transmit bool) error
}

// RTSLine drives RE/DE from the port's RTS output, the usual wiring of
// USB-RS485 adapters.
type RTSLine struct {
	Port   Port
	Invert bool
}

// Set implements DirectionLine.
func (l *RTSLine) Set(transmit bool) error {
	return l.Port.SetRTS(transmit != l.Invert)
}

// GPIOLine drives RE/DE from a GPIO pin.
type GPIOLine struct {
	Pin    gpio.PinOut
	Invert bool
}

// OpenGPIOLine initializes the host drivers and looks up the named pin.
func OpenGPIOLine(name string, invert bool) (*GPIOLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown GPIO pin %q", name)
	}
	return &GPIOLine{Pin: pin, Invert: invert}, nil
}

// Set implements DirectionLine.
func (l *GPIOLine) Set(transmit bool) error {
	level := gpio.Low
	if transmit != l.Invert {
		level = gpio.High
	}
	return l.Pin.Out(level)
}
