package periph

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// Owner is whatever claims a UART, usually a bus driver.
type Owner interface {
	ReceiveHandler
}

type slot struct {
	owner Owner
	name  string
}

// Vectors records which owner holds each UART. Slots are filled once and
// never released.
type Vectors struct {
	slots [MaxPeripherals]slot
	lock  sync.Mutex
}

// DefaultVectors is the process-wide ownership table.
var DefaultVectors = NewVectors()

// NewVectors creates an empty table.
func NewVectors() *Vectors {
	return &Vectors{}
}

// Claim assigns the UART to owner. name is only used in error messages.
func (v *Vectors) Claim(id ID, name string, owner Owner) error {
	if !id.Valid() {
		return fmt.Errorf("UART%d: %w", id, ErrInvalidID)
	}
	v.lock.Lock()
	defer v.lock.Unlock()
	s := &v.slots[id]
	if s.owner != nil {
		return &ConflictError{ID: id, Owner: s.name, Claimant: name}
	}
	s.owner, s.name = owner, name
	glog.V(2).Infof("UART%d claimed by %s", id, name)
	return nil
}

// Owner returns the owner of the UART, or nil.
func (v *Vectors) Owner(id ID) Owner {
	if !id.Valid() {
		return nil
	}
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.slots[id].owner
}
