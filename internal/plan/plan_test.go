package plan

import (
	"testing"

	"github.com/amsen20/reconf/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModel() *model.Model {
	m := model.NewModel()
	m.Mapping().AddOnlineNode(0)
	m.Mapping().AddOnlineNode(1)
	m.Mapping().AddOfflineNode(2)
	m.Mapping().AddRunningVM(1, 0)
	m.Mapping().AddSleepingVM(2, 1)
	m.Mapping().AddReadyVM(3)
	m.DeclareVM(4)
	return m
}

func TestActionApply(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		ok     bool
		check  func(t *testing.T, m *model.Model)
	}{
		{"migrate", Action{Kind: MigrateVM, VM: 1, Node: 0, Dst: 1}, true, func(t *testing.T, m *model.Model) {
			host, _ := m.Mapping().VMLocation(1)
			assert.Equal(t, model.NodeID(1), host)
		}},
		{"migrate from the wrong node", Action{Kind: MigrateVM, VM: 1, Node: 1, Dst: 0}, false, nil},
		{"migrate to an offline node", Action{Kind: MigrateVM, VM: 1, Node: 0, Dst: 2}, false, nil},
		{"boot", Action{Kind: BootVM, VM: 3, Node: 1}, true, func(t *testing.T, m *model.Model) {
			assert.True(t, m.Mapping().IsRunning(3))
		}},
		{"boot a running vm", Action{Kind: BootVM, VM: 1, Node: 1}, false, nil},
		{"shutdown", Action{Kind: ShutdownVM, VM: 1, Node: 0}, true, func(t *testing.T, m *model.Model) {
			assert.True(t, m.Mapping().IsReady(1))
		}},
		{"suspend", Action{Kind: SuspendVM, VM: 1, Node: 0, Dst: 0}, true, func(t *testing.T, m *model.Model) {
			assert.True(t, m.Mapping().IsSleeping(1))
		}},
		{"resume elsewhere", Action{Kind: ResumeVM, VM: 2, Node: 1, Dst: 0}, true, func(t *testing.T, m *model.Model) {
			assert.Equal(t, []model.VMID{1, 2}, m.Mapping().RunningVMsOn(0))
		}},
		{"forge", Action{Kind: ForgeVM, VM: 4}, true, func(t *testing.T, m *model.Model) {
			assert.True(t, m.Mapping().IsReady(4))
		}},
		{"forge a known vm", Action{Kind: ForgeVM, VM: 3}, false, nil},
		{"kill", Action{Kind: KillVM, VM: 2, Node: 1}, true, func(t *testing.T, m *model.Model) {
			assert.False(t, m.Mapping().ContainsVM(2))
		}},
		{"boot node", Action{Kind: BootNode, Node: 2}, true, func(t *testing.T, m *model.Model) {
			assert.True(t, m.Mapping().IsOnline(2))
		}},
		{"shutdown a hosting node", Action{Kind: ShutdownNode, Node: 1}, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleModel()
			before := m.Display()
			require.Equal(t, tt.ok, tt.action.Apply(m))
			if !tt.ok {
				assert.Equal(t, before, m.Display())
				return
			}
			tt.check(t, m)
		})
	}
}

func TestReconfigurationPlan(t *testing.T) {
	p := NewReconfigurationPlan(sampleModel())

	require.True(t, p.Add(Action{Kind: ShutdownNode, Node: 0, Start: 3, End: 5}))
	require.True(t, p.Add(Action{Kind: MigrateVM, VM: 1, Node: 0, Dst: 1, Start: 1, End: 3}))
	require.True(t, p.Add(Action{Kind: BootNode, Node: 2, Start: 0, End: 2}))
	require.True(t, p.Add(Action{Kind: BootVM, VM: 3, Node: 2, Start: 2, End: 3}))

	assert.False(t, p.Add(Action{Kind: ShutdownVM, VM: 1, Node: 0, Start: 0, End: 1}), "one action per vm")
	assert.False(t, p.Add(Action{Kind: BootVM, VM: 4, Node: 1, Start: 3, End: 2}), "ends before it starts")

	assert.Equal(t, 4, p.Size())
	assert.Equal(t, 5, p.Duration())

	kinds := []ActionKind{}
	for _, a := range p.Actions() {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []ActionKind{BootNode, MigrateVM, BootVM, ShutdownNode}, kinds)

	a, ok := p.ActionOnVM(1)
	require.True(t, ok)
	assert.Equal(t, MigrateVM, a.Kind)
	_, ok = p.ActionOnNode(1)
	assert.False(t, ok)

	res, err := p.Result()
	require.NoError(t, err)
	assert.True(t, res.Mapping().IsOffline(0))
	assert.Equal(t, []model.VMID{3}, res.Mapping().RunningVMsOn(2))
	assert.True(t, p.Origin().Mapping().IsOnline(0), "the origin is not modified")
}

func TestPlanNotApplyable(t *testing.T) {
	p := NewReconfigurationPlan(sampleModel())
	require.True(t, p.Add(Action{Kind: ShutdownNode, Node: 0, Start: 0, End: 1}))
	require.True(t, p.Add(Action{Kind: MigrateVM, VM: 1, Node: 0, Dst: 1, Start: 1, End: 2}))
	assert.False(t, p.IsApplyable())
}

func TestParseActionKind(t *testing.T) {
	for _, k := range ActionKinds() {
		parsed, err := ParseActionKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseActionKind("teleport_vm")
	assert.Error(t, err)
}
