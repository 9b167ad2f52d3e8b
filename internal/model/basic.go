package model

import "fmt"

type NodeID int

type VMID int

func (n NodeID) String() string { return fmt.Sprintf("N%d", int(n)) }
func (v VMID) String() string   { return fmt.Sprintf("VM%d", int(v)) }

type NodeState int

const (
	ONLINE NodeState = iota
	OFFLINE
)

func (s NodeState) String() string {
	if s == ONLINE {
		return "online"
	}
	return "offline"
}

type VMState int

const (
	// INIT is a VM that is declared but not yet in the mapping.
	INIT VMState = iota
	READY
	RUNNING
	SLEEPING
	KILLED
)

var vmStateNames = map[VMState]string{
	INIT:     "init",
	READY:    "ready",
	RUNNING:  "running",
	SLEEPING: "sleeping",
	KILLED:   "killed",
}

func (s VMState) String() string {
	return vmStateNames[s]
}

func ParseVMState(s string) (VMState, error) {
	for state, name := range vmStateNames {
		if name == s {
			return state, nil
		}
	}
	return INIT, fmt.Errorf("unknown vm state %q", s)
}
