package alg

import (
	"context"
	"testing"

	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/model/testing_tool"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(nodes []*testing_tool.NodeDesc, vms []*testing_tool.VMDesc) *testing_tool.Builder {
	builder := testing_tool.New()
	builder.ImportNodes(nodes)
	builder.ImportVMs(vms)
	return builder
}

func solve(t *testing.T, params Parameters, m *model.Model, cstrs ...constraint.SatConstraint) *Result {
	res, err := Solve(context.Background(), params, Instance{Model: m, Constraints: cstrs})
	require.NoError(t, err)
	return res
}

// checkResult verifies the plan against the constraints and the capacities,
// and that every action fits in the plan and lasts its default duration.
func checkResult(t *testing.T, res *Result, cstrs ...constraint.SatConstraint) *model.Model {
	require.NotNil(t, res.Plan)
	durations := DefaultParameters().Durations
	for _, a := range res.Plan.Actions() {
		assert.GreaterOrEqual(t, a.Start, 0, a.String())
		assert.LessOrEqual(t, a.Start, a.End, a.String())
		assert.LessOrEqual(t, a.End, res.Plan.Duration(), a.String())
		assert.LessOrEqual(t, a.End, res.Stats.Horizon, a.String())

		id := int(a.VM)
		if a.Kind.IsNodeAction() {
			id = int(a.Node)
		}
		d, err := durations.Evaluate(res.Plan.Origin(), a.Kind, id)
		require.NoError(t, err)
		assert.Equal(t, d, a.End-a.Start, a.String())
	}
	require.NoError(t, constraint.CheckPlan(res.Plan, cstrs))

	result := testing_tool.ApplyPlan(res.Plan)
	assert.Empty(t, result.OverloadedNodes())

	require.NotEmpty(t, res.Stats.Solutions)
	for i := 1; i < len(res.Stats.Solutions); i++ {
		assert.Less(t, res.Stats.Solutions[i].Objective, res.Stats.Solutions[i-1].Objective)
	}
	return result
}

func TestOverloadedNode(t *testing.T) {
	builder := newBuilder(
		[]*testing_tool.NodeDesc{
			{Name: "A", Cpu: 4, Memory: 16},
			{Name: "B", Cpu: 4, Memory: 16},
		},
		[]*testing_tool.VMDesc{
			{Name: "vm1", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "A"},
			{Name: "vm2", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "A"},
		},
	)
	src := builder.Model()
	require.Equal(t, []model.NodeID{builder.Node("A")}, src.OverloadedNodes())

	res := solve(t, DefaultParameters(), src)
	require.Equal(t, cp.Optimal, res.Status)
	result := checkResult(t, res)

	require.Equal(t, 1, res.Plan.Size())
	a := res.Plan.Actions()[0]
	assert.Equal(t, plan.MigrateVM, a.Kind)
	assert.Equal(t, builder.VM("vm1"), a.VM)
	assert.Equal(t, builder.Node("A"), a.Node)
	assert.Equal(t, builder.Node("B"), a.Dst)
	assert.Equal(t, 0, a.Start)
	assert.Equal(t, 1, a.End)
	assert.Equal(t, 1, res.Objective)

	builder.Expect(result, map[string][]string{"A": {"vm2"}, "B": {"vm1"}})
	assert.Equal(t, len(src.VMs()), len(result.VMs()))
}

func TestNothingToDo(t *testing.T) {
	builder := newBuilder(
		[]*testing_tool.NodeDesc{
			{Name: "A", Cpu: 4, Memory: 4},
			{Name: "B", Cpu: 4, Memory: 4},
		},
		[]*testing_tool.VMDesc{
			{Name: "vm1", Cpu: 2, Memory: 2, State: model.RUNNING, Host: "A"},
			{Name: "vm2", Cpu: 1, Memory: 2, State: model.RUNNING, Host: "B"},
			{Name: "vm3", Cpu: 1, Memory: 1, State: model.READY},
		},
	)

	res := solve(t, DefaultParameters(), builder.Model())
	require.Equal(t, cp.Optimal, res.Status)
	checkResult(t, res)
	assert.Zero(t, res.Plan.Size())
	assert.Zero(t, res.Objective)
}

func TestInfeasible(t *testing.T) {
	t.Run("no room left", func(t *testing.T) {
		builder := newBuilder(
			[]*testing_tool.NodeDesc{
				{Name: "A", Cpu: 4, Memory: 4},
				{Name: "B", Cpu: 4, Memory: 4},
			},
			[]*testing_tool.VMDesc{
				{Name: "vm1", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "A"},
				{Name: "vm2", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "B"},
			},
		)
		res := solve(t, DefaultParameters(), builder.Model(), constraint.NewOffline(builder.Node("B")))
		assert.Equal(t, cp.Infeasible, res.Status)
		assert.Nil(t, res.Plan)
	})

	t.Run("offline node and boot forbidden", func(t *testing.T) {
		builder := newBuilder(
			[]*testing_tool.NodeDesc{{Name: "A", Cpu: 4, Memory: 4, Offline: true}},
			[]*testing_tool.VMDesc{{Name: "vm1", Cpu: 1, Memory: 1, State: model.READY}},
		)
		forbidden := map[string]constraint.SatConstraint{
			"offline": constraint.NewOffline(builder.Node("A")),
			"ban":     constraint.NewBan(builder.VMs("vm1"), builder.Nodes("A")),
		}
		for name, c := range forbidden {
			t.Run(name, func(t *testing.T) {
				res := solve(t, DefaultParameters(), builder.Model(), constraint.NewRunning(builder.VM("vm1")), c)
				assert.Equal(t, cp.Infeasible, res.Status)
				assert.Nil(t, res.Plan)
			})
		}
	})

	t.Run("quarantined overloaded node", func(t *testing.T) {
		builder := newBuilder(
			[]*testing_tool.NodeDesc{
				{Name: "A", Cpu: 4, Memory: 4},
				{Name: "B", Cpu: 4, Memory: 4},
			},
			[]*testing_tool.VMDesc{
				{Name: "vm1", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "A"},
				{Name: "vm2", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "A"},
			},
		)
		res := solve(t, DefaultParameters(), builder.Model(), constraint.NewQuarantine(builder.Node("A")))
		assert.Equal(t, cp.Infeasible, res.Status)
		assert.Nil(t, res.Plan)
	})

	t.Run("no node at all", func(t *testing.T) {
		m := model.NewModel()
		m.Mapping().AddReadyVM(0)
		res := solve(t, DefaultParameters(), m, constraint.NewRunning(0))
		assert.Equal(t, cp.Infeasible, res.Status)
		assert.Nil(t, res.Plan)
	})
}

func TestNodeStateChanges(t *testing.T) {
	t.Run("evacuate then shut down", func(t *testing.T) {
		builder := newBuilder(
			[]*testing_tool.NodeDesc{
				{Name: "A", Cpu: 4, Memory: 4},
				{Name: "B", Cpu: 4, Memory: 4},
			},
			[]*testing_tool.VMDesc{
				{Name: "vm1", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "A"},
			},
		)
		cstrs := []constraint.SatConstraint{constraint.NewOffline(builder.Node("A"))}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		result := checkResult(t, res, cstrs...)

		migrate, ok := res.Plan.ActionOnVM(builder.VM("vm1"))
		require.True(t, ok)
		assert.Equal(t, plan.MigrateVM, migrate.Kind)
		shutdown, ok := res.Plan.ActionOnNode(builder.Node("A"))
		require.True(t, ok)
		assert.Equal(t, plan.ShutdownNode, shutdown.Kind)
		assert.GreaterOrEqual(t, shutdown.Start, migrate.End)
		assert.Equal(t, 2, shutdown.Duration())
		assert.True(t, result.Mapping().IsOffline(builder.Node("A")))
	})

	t.Run("boot a node for a new VM", func(t *testing.T) {
		builder := newBuilder(
			[]*testing_tool.NodeDesc{
				{Name: "A", Cpu: 2, Memory: 4},
				{Name: "B", Cpu: 4, Memory: 4, Offline: true},
			},
			[]*testing_tool.VMDesc{
				{Name: "vm1", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "A"},
				{Name: "vm2", Cpu: 2, Memory: 1, State: model.READY},
			},
		)
		cstrs := []constraint.SatConstraint{constraint.NewRunning(builder.VM("vm2"))}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		result := checkResult(t, res, cstrs...)

		boot, ok := res.Plan.ActionOnNode(builder.Node("B"))
		require.True(t, ok)
		assert.Equal(t, plan.BootNode, boot.Kind)
		vm, ok := res.Plan.ActionOnVM(builder.VM("vm2"))
		require.True(t, ok)
		assert.Equal(t, plan.BootVM, vm.Kind)
		assert.Equal(t, builder.Node("B"), vm.Node)
		assert.GreaterOrEqual(t, vm.Start, boot.End)
		builder.Expect(result, map[string][]string{"A": {"vm1"}, "B": {"vm2"}})
	})

	t.Run("max online", func(t *testing.T) {
		builder := newBuilder(
			[]*testing_tool.NodeDesc{
				{Name: "A", Cpu: 4, Memory: 4},
				{Name: "B", Cpu: 4, Memory: 4},
			},
			nil,
		)
		cstrs := []constraint.SatConstraint{constraint.NewMaxOnline(builder.Nodes("A", "B"), 1)}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		checkResult(t, res, cstrs...)
		assert.Len(t, res.Plan.ActionsOf(plan.ShutdownNode), 1)
	})
}

func TestVMStateChanges(t *testing.T) {
	builder := newBuilder(
		[]*testing_tool.NodeDesc{
			{Name: "A", Cpu: 8, Memory: 8},
		},
		[]*testing_tool.VMDesc{
			{Name: "vm1", Cpu: 1, Memory: 1, State: model.RUNNING, Host: "A"},
			{Name: "vm2", Cpu: 1, Memory: 1, State: model.RUNNING, Host: "A"},
			{Name: "vm3", Cpu: 1, Memory: 1, State: model.RUNNING, Host: "A"},
			{Name: "vm4", Cpu: 1, Memory: 1, State: model.SLEEPING, Host: "A"},
			{Name: "vm5", Cpu: 1, Memory: 1},
		},
	)
	cstrs := []constraint.SatConstraint{
		constraint.NewReady(builder.VM("vm1")),
		constraint.NewSleeping(builder.VM("vm2")),
		constraint.NewKilled(builder.VM("vm3")),
		constraint.NewRunning(builder.VM("vm4")),
		constraint.NewReady(builder.VM("vm5")),
	}
	res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
	require.Equal(t, cp.Optimal, res.Status)
	result := checkResult(t, res, cstrs...)

	want := map[string]plan.ActionKind{
		"vm1": plan.ShutdownVM,
		"vm2": plan.SuspendVM,
		"vm3": plan.KillVM,
		"vm4": plan.ResumeVM,
		"vm5": plan.ForgeVM,
	}
	for name, kind := range want {
		a, ok := res.Plan.ActionOnVM(builder.VM(name))
		require.True(t, ok, name)
		assert.Equal(t, kind, a.Kind, name)
	}
	assert.True(t, result.Mapping().IsSleeping(builder.VM("vm2")))
	assert.False(t, result.Mapping().ContainsVM(builder.VM("vm3")))
}

func TestPlacementConstraints(t *testing.T) {
	nodes := []*testing_tool.NodeDesc{
		{Name: "A", Cpu: 4, Memory: 4},
		{Name: "B", Cpu: 4, Memory: 4},
		{Name: "C", Cpu: 4, Memory: 4},
	}
	vms := []*testing_tool.VMDesc{
		{Name: "vm1", Cpu: 1, Memory: 1, State: model.RUNNING, Host: "A"},
		{Name: "vm2", Cpu: 1, Memory: 1, State: model.RUNNING, Host: "A"},
	}

	t.Run("ban", func(t *testing.T) {
		builder := newBuilder(nodes, vms)
		cstrs := []constraint.SatConstraint{
			constraint.NewBan(builder.VMs("vm1"), builder.Nodes("A", "B")),
		}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		result := checkResult(t, res, cstrs...)
		builder.Expect(result, map[string][]string{"A": {"vm2"}, "C": {"vm1"}})
	})

	t.Run("fence", func(t *testing.T) {
		builder := newBuilder(nodes, vms)
		cstrs := []constraint.SatConstraint{
			constraint.NewFence(builder.VMs("vm1", "vm2"), builder.Nodes("B")),
		}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		result := checkResult(t, res, cstrs...)
		builder.Expect(result, map[string][]string{"A": {}, "B": {"vm1", "vm2"}})
		assert.Equal(t, 2, res.Objective)
	})

	t.Run("spread", func(t *testing.T) {
		builder := newBuilder(nodes, vms)
		cstrs := []constraint.SatConstraint{
			constraint.NewSpread(builder.VMs("vm1", "vm2")...),
		}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		result := checkResult(t, res, cstrs...)
		assert.Equal(t, 1, res.Plan.Size())
		assert.Len(t, result.Mapping().RunningVMsOn(builder.Node("A")), 1)
	})

	t.Run("single resource capacity", func(t *testing.T) {
		builder := newBuilder(nodes, vms)
		cstrs := []constraint.SatConstraint{
			constraint.NewSingleResourceCapacity(builder.Nodes("A"), testing_tool.CPU, 1),
		}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		result := checkResult(t, res, cstrs...)
		assert.Len(t, result.Mapping().RunningVMsOn(builder.Node("A")), 1)
	})

	t.Run("preserve", func(t *testing.T) {
		builder := newBuilder(nodes, vms)
		cstrs := []constraint.SatConstraint{
			constraint.NewPreserve(builder.VMs("vm1", "vm2"), testing_tool.CPU, 3),
		}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		result := checkResult(t, res, cstrs...)
		assert.Equal(t, 1, res.Plan.Size())
		assert.Len(t, result.Mapping().RunningVMsOn(builder.Node("A")), 1)
	})

	t.Run("quarantine", func(t *testing.T) {
		builder := newBuilder(nodes, append([]*testing_tool.VMDesc{
			{Name: "vm3", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "B"},
			{Name: "vm4", Cpu: 1, Memory: 1, State: model.READY},
		}, vms...))
		cstrs := []constraint.SatConstraint{
			constraint.NewQuarantine(builder.Node("C")),
			constraint.NewFence(builder.VMs("vm1"), builder.Nodes("B", "C")),
			constraint.NewRunning(builder.VM("vm4")),
		}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		checkResult(t, res, cstrs...)

		migrate, ok := res.Plan.ActionOnVM(builder.VM("vm1"))
		require.True(t, ok)
		assert.Equal(t, builder.Node("B"), migrate.Dst)
		boot, ok := res.Plan.ActionOnVM(builder.VM("vm4"))
		require.True(t, ok)
		assert.NotEqual(t, builder.Node("C"), boot.Node)
	})

	t.Run("root", func(t *testing.T) {
		builder := newBuilder(nodes, vms)
		cstrs := []constraint.SatConstraint{
			constraint.NewRoot(builder.VM("vm1")),
			constraint.NewBan(builder.VMs("vm2"), builder.Nodes("A")),
		}
		res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
		require.Equal(t, cp.Optimal, res.Status)
		checkResult(t, res, cstrs...)
		_, moved := res.Plan.ActionOnVM(builder.VM("vm1"))
		assert.False(t, moved)
	})
}

func TestRepairMode(t *testing.T) {
	builder := newBuilder(
		[]*testing_tool.NodeDesc{
			{Name: "A", Cpu: 4, Memory: 16},
			{Name: "B", Cpu: 4, Memory: 16},
			{Name: "C", Cpu: 4, Memory: 16},
		},
		[]*testing_tool.VMDesc{
			{Name: "vm1", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "A"},
			{Name: "vm2", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "A"},
			{Name: "vm3", Cpu: 1, Memory: 1, State: model.RUNNING, Host: "C"},
		},
	)
	params := DefaultParameters()
	params.RepairMode = true

	p, err := NewProblem(params, Instance{Model: builder.Model()})
	require.NoError(t, err)
	assert.Equal(t, Relocate, p.VMTransition(builder.VM("vm1")).Kind())
	assert.Equal(t, StayRunning, p.VMTransition(builder.VM("vm3")).Kind())

	res := solve(t, params, builder.Model())
	require.Equal(t, cp.Optimal, res.Status)
	checkResult(t, res)
	a, ok := res.Plan.ActionOnVM(builder.VM("vm1"))
	require.True(t, ok)
	assert.NotEqual(t, builder.Node("A"), a.Dst)
}

func TestSolutionsImprove(t *testing.T) {
	builder := newBuilder(
		[]*testing_tool.NodeDesc{
			{Name: "A", Cpu: 4, Memory: 16},
			{Name: "B", Cpu: 4, Memory: 16},
			{Name: "C", Cpu: 4, Memory: 16},
		},
		[]*testing_tool.VMDesc{
			{Name: "vm1", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "A"},
			{Name: "vm2", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "A"},
			{Name: "vm3", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "B"},
			{Name: "vm4", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "B"},
			{Name: "vm5", Cpu: 1, Memory: 1, State: model.READY},
		},
	)
	cstrs := []constraint.SatConstraint{constraint.NewRunning(builder.VM("vm5"))}
	res := solve(t, DefaultParameters(), builder.Model(), cstrs...)
	require.Equal(t, cp.Optimal, res.Status)
	checkResult(t, res, cstrs...)

	sols := res.Stats.Solutions
	require.NotEmpty(t, sols)
	assert.Equal(t, res.Objective, sols[len(sols)-1].Objective)
	for i := 1; i < len(sols); i++ {
		assert.Less(t, sols[i].Objective, sols[i-1].Objective)
		assert.GreaterOrEqual(t, sols[i].Nodes, sols[i-1].Nodes)
	}
	assert.Positive(t, res.Stats.Nodes)
}

func TestFirstSolutionOnly(t *testing.T) {
	builder := newBuilder(
		[]*testing_tool.NodeDesc{
			{Name: "A", Cpu: 4, Memory: 16},
			{Name: "B", Cpu: 4, Memory: 16},
		},
		[]*testing_tool.VMDesc{
			{Name: "vm1", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "A"},
			{Name: "vm2", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "A"},
		},
	)
	params := DefaultParameters()
	params.Optimize = false

	res := solve(t, params, builder.Model())
	require.Equal(t, cp.Feasible, res.Status)
	checkResult(t, res)
	assert.Len(t, res.Stats.Solutions, 1)
}

func TestConfigurationErrors(t *testing.T) {
	builder := newBuilder(
		[]*testing_tool.NodeDesc{{Name: "A", Cpu: 4, Memory: 4}},
		[]*testing_tool.VMDesc{{Name: "vm1", Cpu: 1, Memory: 1, State: model.RUNNING, Host: "A"}},
	)

	cases := []struct {
		name   string
		params func(p *Parameters)
		cstrs  []constraint.SatConstraint
	}{
		{
			name: "conflicting states",
			cstrs: []constraint.SatConstraint{
				constraint.NewRunning(builder.VM("vm1")),
				constraint.NewReady(builder.VM("vm1")),
			},
		},
		{
			name: "online and offline",
			cstrs: []constraint.SatConstraint{
				constraint.NewOnline(builder.Node("A")),
				constraint.NewOffline(builder.Node("A")),
			},
		},
		{
			name:   "horizon too short",
			params: func(p *Parameters) { p.Horizon = 1 },
			cstrs:  []constraint.SatConstraint{constraint.NewReady(builder.VM("vm1")), constraint.NewOffline(builder.Node("A"))},
		},
		{
			name:   "missing duration",
			params: func(p *Parameters) { p.Durations.Unregister(plan.MigrateVM) },
		},
		{
			name:  "unknown resource",
			cstrs: []constraint.SatConstraint{constraint.NewSingleResourceCapacity(builder.Nodes("A"), "gpu", 1)},
		},
		{
			name:  "root VM changing state",
			cstrs: []constraint.SatConstraint{constraint.NewRoot(builder.VM("vm1")), constraint.NewKilled(builder.VM("vm1"))},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			params := DefaultParameters()
			if c.params != nil {
				c.params(&params)
			}
			_, err := Solve(context.Background(), params, Instance{Model: builder.Model(), Constraints: c.cstrs})
			var cfgErr *ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}
