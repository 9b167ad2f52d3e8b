package constraint

import (
	"testing"

	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *model.Model {
	m := model.NewModel()
	cpu := model.NewShareableResource("cpu", 8, 1)
	m.AddResource(cpu)
	m.Mapping().AddOnlineNode(0)
	m.Mapping().AddOnlineNode(1)
	m.Mapping().AddOfflineNode(2)
	m.Mapping().AddRunningVM(1, 0)
	m.Mapping().AddRunningVM(2, 0)
	m.Mapping().AddRunningVM(3, 1)
	m.Mapping().AddReadyVM(4)
	m.Mapping().AddSleepingVM(5, 1)
	cpu.SetConsumption(1, 3).SetConsumption(2, 3)
	return m
}

func TestIsSatisfied(t *testing.T) {
	m := sample()
	tests := []struct {
		c    SatConstraint
		want bool
	}{
		{NewRunning(1, 2, 3), true},
		{NewRunning(1, 4), false},
		{NewReady(4), true},
		{NewSleeping(5), true},
		{NewSleeping(3), false},
		{NewKilled(9), true},
		{NewKilled(4), false},
		{NewOnline(0, 1), true},
		{NewOffline(2), true},
		{NewOffline(1), false},
		{NewRoot(1), true},
		{NewBan([]model.VMID{1, 4, 5}, []model.NodeID{1}), true},
		{NewBan([]model.VMID{3}, []model.NodeID{1}), false},
		{NewFence([]model.VMID{1, 2}, []model.NodeID{0}), true},
		{NewFence([]model.VMID{3}, []model.NodeID{0}), false},
		{NewSpread(1, 3), true},
		{NewSpread(1, 2), false},
		{NewSingleResourceCapacity([]model.NodeID{0}, "cpu", 6), true},
		{NewSingleResourceCapacity([]model.NodeID{0}, "cpu", 5), false},
		{NewSingleResourceCapacity([]model.NodeID{0}, "gpu", 5), false},
		{NewMaxOnline([]model.NodeID{0, 1, 2}, 2), true},
		{NewMaxOnline([]model.NodeID{0, 1, 2}, 1), false},
		{NewPreserve([]model.VMID{1}, "cpu", 5), true},
		{NewPreserve([]model.VMID{1, 2}, "cpu", 5), false},
		{NewPreserve([]model.VMID{4}, "cpu", 50), true},
		{NewPreserve([]model.VMID{1}, "gpu", 1), false},
		{NewQuarantine(0, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.c.Name(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.IsSatisfied(m))
		})
	}
}

func TestContinuousRestriction(t *testing.T) {
	assert.False(t, NewRunning(1).SetContinuous(true))
	assert.True(t, NewRunning(1).SetContinuous(false))
	assert.False(t, NewRoot(1).SetContinuous(false))
	assert.False(t, NewQuarantine(0).SetContinuous(false))
	assert.False(t, NewPreserve([]model.VMID{1}, "cpu", 1).SetContinuous(true))

	s := NewSpread(1, 2)
	assert.True(t, s.IsContinuous())
	assert.True(t, s.SetContinuous(false))
	assert.False(t, s.IsContinuous())
}

func TestCheckPlan(t *testing.T) {
	t.Run("root vm moved", func(t *testing.T) {
		p := plan.NewReconfigurationPlan(sample())
		require.True(t, p.Add(plan.Action{Kind: plan.MigrateVM, VM: 1, Node: 0, Dst: 1, Start: 0, End: 1}))
		assert.Error(t, CheckPlan(p, []SatConstraint{NewRoot(1)}))
		assert.NoError(t, CheckPlan(p, []SatConstraint{NewRoot(2)}))
	})

	t.Run("discrete result", func(t *testing.T) {
		p := plan.NewReconfigurationPlan(sample())
		require.True(t, p.Add(plan.Action{Kind: plan.MigrateVM, VM: 2, Node: 0, Dst: 1, Start: 0, End: 1}))
		assert.NoError(t, CheckPlan(p, []SatConstraint{NewSpread(1, 2)}))
		assert.Error(t, CheckPlan(p, []SatConstraint{NewSpread(2, 3)}))
	})

	t.Run("continuous spread", func(t *testing.T) {
		// VM3 goes to N0 once VM2 left for N1
		p := plan.NewReconfigurationPlan(sample())
		require.True(t, p.Add(plan.Action{Kind: plan.MigrateVM, VM: 2, Node: 0, Dst: 1, Start: 0, End: 2}))
		require.True(t, p.Add(plan.Action{Kind: plan.MigrateVM, VM: 3, Node: 1, Dst: 0, Start: 1, End: 3}))
		spread := NewSpread(2, 3)
		assert.Error(t, CheckPlan(p, []SatConstraint{spread}))
		spread.SetContinuous(false)
		assert.NoError(t, CheckPlan(p, []SatConstraint{spread}))
	})

	t.Run("quarantine", func(t *testing.T) {
		q := []SatConstraint{NewQuarantine(0)}

		out := plan.NewReconfigurationPlan(sample())
		require.True(t, out.Add(plan.Action{Kind: plan.MigrateVM, VM: 1, Node: 0, Dst: 1, Start: 0, End: 1}))
		assert.Error(t, CheckPlan(out, q))

		in := plan.NewReconfigurationPlan(sample())
		require.True(t, in.Add(plan.Action{Kind: plan.ResumeVM, VM: 5, Node: 1, Dst: 0, Start: 0, End: 1}))
		assert.Error(t, CheckPlan(in, q))

		boot := plan.NewReconfigurationPlan(sample())
		require.True(t, boot.Add(plan.Action{Kind: plan.BootVM, VM: 4, Node: 0, Start: 0, End: 1}))
		assert.Error(t, CheckPlan(boot, q))

		elsewhere := plan.NewReconfigurationPlan(sample())
		require.True(t, elsewhere.Add(plan.Action{Kind: plan.BootVM, VM: 4, Node: 1, Start: 0, End: 1}))
		assert.NoError(t, CheckPlan(elsewhere, q))
	})

	t.Run("not applicable", func(t *testing.T) {
		p := plan.NewReconfigurationPlan(sample())
		require.True(t, p.Add(plan.Action{Kind: plan.BootVM, VM: 4, Node: 2, Start: 0, End: 1}))
		assert.Error(t, CheckPlan(p, nil))
	})
}
