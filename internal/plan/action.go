package plan

import (
	"fmt"

	"github.com/amsen20/reconf/internal/model"
)

type ActionKind int

const (
	BootVM ActionKind = iota
	ShutdownVM
	MigrateVM
	SuspendVM
	ResumeVM
	ForgeVM
	KillVM
	BootNode
	ShutdownNode
)

var kindNames = map[ActionKind]string{
	BootVM:       "boot_vm",
	ShutdownVM:   "shutdown_vm",
	MigrateVM:    "migrate_vm",
	SuspendVM:    "suspend_vm",
	ResumeVM:     "resume_vm",
	ForgeVM:      "forge_vm",
	KillVM:       "kill_vm",
	BootNode:     "boot_node",
	ShutdownNode: "shutdown_node",
}

func (k ActionKind) String() string {
	return kindNames[k]
}

func (k ActionKind) IsNodeAction() bool {
	return k == BootNode || k == ShutdownNode
}

func ParseActionKind(s string) (ActionKind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown action kind %q", s)
}

func ActionKinds() []ActionKind {
	return []ActionKind{BootVM, ShutdownVM, MigrateVM, SuspendVM, ResumeVM, ForgeVM, KillVM, BootNode, ShutdownNode}
}

// Action is a timed operation of a plan. VM actions use VM, Node is the
// node involved (the source of a migration), Dst the destination of a
// migration, a resume or a suspend.
type Action struct {
	Kind  ActionKind
	VM    model.VMID
	Node  model.NodeID
	Dst   model.NodeID
	Start int
	End   int
}

func (a Action) Duration() int {
	return a.End - a.Start
}

func (a Action) String() string {
	var what string
	switch a.Kind {
	case BootNode, ShutdownNode:
		what = fmt.Sprintf("%s(%s)", a.Kind, a.Node)
	case MigrateVM, ResumeVM, SuspendVM:
		what = fmt.Sprintf("%s(%s, %s -> %s)", a.Kind, a.VM, a.Node, a.Dst)
	case ForgeVM:
		what = fmt.Sprintf("%s(%s)", a.Kind, a.VM)
	default:
		what = fmt.Sprintf("%s(%s, %s)", a.Kind, a.VM, a.Node)
	}
	return fmt.Sprintf("%d:%d %s", a.Start, a.End, what)
}

var appliers = map[ActionKind]func(a Action, m *model.Model) bool{
	BootVM: func(a Action, m *model.Model) bool {
		return m.Mapping().IsReady(a.VM) && m.Mapping().AddRunningVM(a.VM, a.Node)
	},
	ShutdownVM: func(a Action, m *model.Model) bool {
		if !isHostedOn(m, a.VM, a.Node, model.RUNNING) {
			return false
		}
		m.Mapping().AddReadyVM(a.VM)
		return true
	},
	MigrateVM: func(a Action, m *model.Model) bool {
		return isHostedOn(m, a.VM, a.Node, model.RUNNING) && m.Mapping().AddRunningVM(a.VM, a.Dst)
	},
	SuspendVM: func(a Action, m *model.Model) bool {
		return isHostedOn(m, a.VM, a.Node, model.RUNNING) && m.Mapping().AddSleepingVM(a.VM, a.Dst)
	},
	ResumeVM: func(a Action, m *model.Model) bool {
		return isHostedOn(m, a.VM, a.Node, model.SLEEPING) && m.Mapping().AddRunningVM(a.VM, a.Dst)
	},
	ForgeVM: func(a Action, m *model.Model) bool {
		if m.Mapping().ContainsVM(a.VM) {
			return false
		}
		m.DeclareVM(a.VM)
		m.Mapping().AddReadyVM(a.VM)
		return true
	},
	KillVM: func(a Action, m *model.Model) bool {
		if !m.Mapping().ContainsVM(a.VM) {
			return m.ContainsVM(a.VM)
		}
		return m.Mapping().Remove(a.VM)
	},
	BootNode: func(a Action, m *model.Model) bool {
		if !m.Mapping().IsOffline(a.Node) {
			return false
		}
		m.Mapping().AddOnlineNode(a.Node)
		return true
	},
	ShutdownNode: func(a Action, m *model.Model) bool {
		return m.Mapping().IsOnline(a.Node) && m.Mapping().AddOfflineNode(a.Node)
	},
}

func isHostedOn(m *model.Model, vm model.VMID, n model.NodeID, state model.VMState) bool {
	host, ok := m.Mapping().VMLocation(vm)
	return ok && host == n && m.Mapping().VMState(vm) == state
}

// Apply performs the action on a model. It returns false and leaves the
// model untouched when the action is not applicable.
func (a Action) Apply(m *model.Model) bool {
	apply, ok := appliers[a.Kind]
	if !ok {
		return false
	}
	return apply(a, m)
}
