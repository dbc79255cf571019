package env

import (
	"os"
	"strconv"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const fallbackNodeID = "databus-node"

// MachineID retrieves the unique ID identifying the machine.
// It falls back to a fixed name when the platform provides none.
func MachineID() string {
	id, err := machineid.ProtectedID("databus")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return fallbackNodeID
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// NodeID identifies this process on a virtual line: the machine id plus the
// process id, so several tools on one host remain distinct participants.
func NodeID() string {
	return MachineID() + "-" + strconv.Itoa(os.Getpid())
}
