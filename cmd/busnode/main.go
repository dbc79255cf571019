//go:build rp2040 || rp2350

// busnode is a firmware node that echoes every byte it hears on UART1 back
// onto the RS-485 bus.
package main

import (
	"machine"
	"time"

	"github.com/robotalks/databus/pkg/databus"
	"github.com/robotalks/databus/pkg/periph/rp2"
)

const baudRate = 115200

func main() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// GPIO8 TX, GPIO9 RX, GPIO10 to the transceiver's DE and /RE.
	rp2.UART1.SetPins(machine.GPIO8, machine.GPIO9, machine.GPIO10, false)
	bus, err := databus.New(rp2.UART1, baudRate)
	if err != nil {
		println("databus:", err.Error())
		for {
			time.Sleep(time.Second)
		}
	}

	for {
		if bus.IsByteReceived() {
			led.Set(!led.Get())
			bus.SendByte(bus.LastByte())
		}
		time.Sleep(100 * time.Microsecond)
	}
}
