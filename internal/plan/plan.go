package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/amsen20/reconf/internal/model"
)

type subject struct {
	node bool
	id   int
}

func subjectOf(a Action) subject {
	if a.Kind.IsNodeAction() {
		return subject{node: true, id: int(a.Node)}
	}
	return subject{id: int(a.VM)}
}

// ReconfigurationPlan is a set of timed actions over a source model. An
// element is the subject of at most one action.
type ReconfigurationPlan struct {
	origin   *model.Model
	actions  []Action
	subjects map[subject]int
}

func NewReconfigurationPlan(origin *model.Model) *ReconfigurationPlan {
	return &ReconfigurationPlan{
		origin:   origin,
		subjects: make(map[subject]int),
	}
}

func (p *ReconfigurationPlan) Origin() *model.Model {
	return p.origin
}

// Add rejects an action on an element that already has one, and actions with
// a negative start or ending before they begin.
func (p *ReconfigurationPlan) Add(a Action) bool {
	if a.Start < 0 || a.End < a.Start {
		return false
	}
	key := subjectOf(a)
	if _, ok := p.subjects[key]; ok {
		return false
	}
	p.subjects[key] = len(p.actions)
	p.actions = append(p.actions, a)
	return true
}

func (p *ReconfigurationPlan) Size() int {
	return len(p.actions)
}

// Duration is the end of the last action.
func (p *ReconfigurationPlan) Duration() int {
	d := 0
	for _, a := range p.actions {
		if a.End > d {
			d = a.End
		}
	}
	return d
}

// Actions returns the actions sorted by start, then end, in insertion order
// otherwise.
func (p *ReconfigurationPlan) Actions() []Action {
	res := make([]Action, len(p.actions))
	copy(res, p.actions)
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Start != res[j].Start {
			return res[i].Start < res[j].Start
		}
		if res[i].End != res[j].End {
			return res[i].End < res[j].End
		}
		return applyRank(res[i].Kind) < applyRank(res[j].Kind)
	})
	return res
}

// applyRank makes nodes come online before VMs start on them and go offline
// once VMs left, when the actions are simultaneous.
func applyRank(k ActionKind) int {
	switch k {
	case BootNode:
		return 0
	case ShutdownNode:
		return 2
	}
	return 1
}

// ActionsOf returns the VM actions of the given kind.
func (p *ReconfigurationPlan) ActionsOf(kind ActionKind) []Action {
	var res []Action
	for _, a := range p.Actions() {
		if a.Kind == kind {
			res = append(res, a)
		}
	}
	return res
}

// ActionOnVM returns the action of a VM if any.
func (p *ReconfigurationPlan) ActionOnVM(vm model.VMID) (Action, bool) {
	i, ok := p.subjects[subject{id: int(vm)}]
	if !ok {
		return Action{}, false
	}
	return p.actions[i], true
}

func (p *ReconfigurationPlan) ActionOnNode(n model.NodeID) (Action, bool) {
	i, ok := p.subjects[subject{node: true, id: int(n)}]
	if !ok {
		return Action{}, false
	}
	return p.actions[i], true
}

// Result applies every action on a copy of the origin.
func (p *ReconfigurationPlan) Result() (*model.Model, error) {
	m := p.origin.Clone()
	for _, a := range p.Actions() {
		if !a.Apply(m) {
			return nil, fmt.Errorf("action %s is not applicable", a)
		}
	}
	return m, nil
}

func (p *ReconfigurationPlan) IsApplyable() bool {
	_, err := p.Result()
	return err == nil
}

func (p *ReconfigurationPlan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plan: %d actions, duration %d\n", p.Size(), p.Duration())
	for _, a := range p.Actions() {
		b.WriteString(a.String())
		b.WriteString("\n")
	}
	return b.String()
}
