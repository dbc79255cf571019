// Package periph defines the contract between the bus driver and the UART
// peripheral it runs on.
//
// A Binding owns the physical TX/RX lines of one UART and the RE/DE line of
// the half-duplex transceiver attached to it. The driver asks it to switch
// direction and to emit bytes; the binding calls back into the driver from its
// receive context once per received byte.
//
// Each physical UART may be owned by a single driver. Ownership is recorded in
// a Vectors table indexed by peripheral ID, which is populated once during
// initialization and never released.
package periph
