package constraint

import (
	"fmt"
	"sort"

	"github.com/amsen20/reconf/internal/model"
)

type Kind int

const (
	RUNNING Kind = iota
	READY
	SLEEPING
	KILLED
	ONLINE
	OFFLINE
	ROOT
	BAN
	FENCE
	SPREAD
	SINGLE_RESOURCE_CAPACITY
	MAX_ONLINE
	PRESERVE
	QUARANTINE
)

var kindNames = map[Kind]string{
	RUNNING:                  "running",
	READY:                    "ready",
	SLEEPING:                 "sleeping",
	KILLED:                   "killed",
	ONLINE:                   "online",
	OFFLINE:                  "offline",
	ROOT:                     "root",
	BAN:                      "ban",
	FENCE:                    "fence",
	SPREAD:                   "spread",
	SINGLE_RESOURCE_CAPACITY: "single_resource_capacity",
	MAX_ONLINE:               "max_online",
	PRESERVE:                 "preserve",
	QUARANTINE:               "quarantine",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown constraint %q", s)
}

// SatConstraint is a placement or state requirement on the result of a
// reconfiguration. A continuous constraint must also hold during the plan.
type SatConstraint interface {
	Kind() Kind
	Name() string
	InvolvedVMs() []model.VMID
	InvolvedNodes() []model.NodeID
	IsContinuous() bool
	// SetContinuous returns false when the restriction is not supported.
	SetContinuous(b bool) bool
	IsSatisfied(m *model.Model) bool
}

type base struct {
	kind       Kind
	vms        []model.VMID
	nodes      []model.NodeID
	continuous bool
}

func newBase(kind Kind, vms []model.VMID, nodes []model.NodeID) base {
	vms = append([]model.VMID(nil), vms...)
	nodes = append([]model.NodeID(nil), nodes...)
	sort.Slice(vms, func(i, j int) bool { return vms[i] < vms[j] })
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return base{kind: kind, vms: vms, nodes: nodes}
}

func (b *base) Kind() Kind                    { return b.kind }
func (b *base) Name() string                  { return b.kind.String() }
func (b *base) InvolvedVMs() []model.VMID     { return b.vms }
func (b *base) InvolvedNodes() []model.NodeID { return b.nodes }
func (b *base) IsContinuous() bool            { return b.continuous }

// SetContinuous only accepts the discrete restriction by default.
func (b *base) SetContinuous(c bool) bool {
	return !c
}

func (b *base) String() string {
	s := fmt.Sprintf("%s(vms=%v, nodes=%v", b.kind, b.vms, b.nodes)
	if b.continuous {
		s += ", continuous"
	}
	return s + ")"
}

func allVMs(vms []model.VMID, keep func(vm model.VMID) bool) bool {
	for _, vm := range vms {
		if !keep(vm) {
			return false
		}
	}
	return true
}
