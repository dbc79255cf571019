// Package databus drives a half-duplex single-wire bus (RS-485 style) on top
// of a UART binding.
//
// Only one participant may transmit at a time. The Driver keeps the local
// transceiver in receive mode except for the duration of SendByte, and
// exposes received data as a single-slot mailbox: the binding's receive
// context stores each byte and raises a flag; the foreground polls the flag
// with IsByteReceived, which reads and clears it atomically, and then reads
// LastByte.
//
// A byte that arrives before the previous one was polled replaces it, and
// both arrivals are reported by a single true from IsByteReceived. Bytes on
// the wire while the local transceiver drives the line are not received.
package databus
