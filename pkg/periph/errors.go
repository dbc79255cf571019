package periph

import (
	"errors"
	"fmt"
)

var (
	// ErrPeripheralBusy indicates the UART is already owned by another driver.
	ErrPeripheralBusy = errors.New("peripheral busy")
	// ErrInvalidID indicates the peripheral ID is outside the ownership table.
	ErrInvalidID = errors.New("invalid peripheral id")
	// ErrInvalidBaudRate indicates a zero baud rate.
	ErrInvalidBaudRate = errors.New("invalid baud rate")
)

// ConflictError reports two owners claiming the same UART.
type ConflictError struct {
	ID       ID
	Owner    string
	Claimant string
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("UART%d claimed by %s, already used by %s", e.ID, e.Claimant, e.Owner)
}

// Unwrap allows errors.Is(err, ErrPeripheralBusy).
func (e *ConflictError) Unwrap() error {
	return ErrPeripheralBusy
}
