package partition

import (
	"context"
	"testing"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/model/testing_tool"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// two pairs of nodes, the first node of each pair is overloaded
func overloadedPairs() *testing_tool.Builder {
	builder := testing_tool.New()
	builder.ImportNodes([]*testing_tool.NodeDesc{
		{Name: "A", Cpu: 4, Memory: 16},
		{Name: "B", Cpu: 4, Memory: 16},
		{Name: "C", Cpu: 4, Memory: 16},
		{Name: "D", Cpu: 4, Memory: 16},
	})
	builder.ImportVMs([]*testing_tool.VMDesc{
		{Name: "vm1", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "A"},
		{Name: "vm2", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "A"},
		{Name: "vm3", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "C"},
		{Name: "vm4", Cpu: 3, Memory: 1, State: model.RUNNING, Host: "C"},
		{Name: "r1", Cpu: 1, Memory: 1, State: model.READY},
		{Name: "r2", Cpu: 1, Memory: 1, State: model.READY},
	})
	return builder
}

func TestFixedSizeSplit(t *testing.T) {
	builder := overloadedPairs()

	t.Run("VMs follow their host", func(t *testing.T) {
		parts, err := NewFixedSize(2).Split(alg.Instance{
			Model: builder.Model(),
			Constraints: []constraint.SatConstraint{
				constraint.NewOffline(builder.Node("D")),
				constraint.NewRunning(builder.VM("r1")),
			},
		})
		require.NoError(t, err)
		require.Len(t, parts, 2)

		first, second := parts[0].Instance, parts[1].Instance
		assert.Equal(t, builder.Nodes("A", "B"), first.Model.Nodes())
		assert.Equal(t, builder.Nodes("C", "D"), second.Model.Nodes())
		assert.Equal(t, builder.VMs("vm1", "vm2", "r1"), first.Model.VMs())
		assert.Equal(t, builder.VMs("vm3", "vm4", "r2"), second.Model.VMs())
		assert.True(t, first.Model.Mapping().IsReady(builder.VM("r1")))

		require.Len(t, first.Constraints, 1)
		assert.Equal(t, constraint.RUNNING, first.Constraints[0].Kind())
		require.Len(t, second.Constraints, 1)
		assert.Equal(t, constraint.OFFLINE, second.Constraints[0].Kind())
	})

	t.Run("constraints spanning parts are rejected", func(t *testing.T) {
		_, err := NewFixedSize(2).Split(alg.Instance{
			Model: builder.Model(),
			Constraints: []constraint.SatConstraint{
				constraint.NewMaxOnline(builder.Nodes("A", "C"), 1),
			},
		})
		assert.Error(t, err)
	})

	t.Run("quarantine and preserve are split", func(t *testing.T) {
		parts, err := NewFixedSize(2).Split(alg.Instance{
			Model: builder.Model(),
			Constraints: []constraint.SatConstraint{
				constraint.NewQuarantine(builder.Nodes("A", "C")...),
				constraint.NewPreserve(builder.VMs("vm1", "vm3", "vm4"), testing_tool.CPU, 3),
			},
		})
		require.NoError(t, err)
		require.Len(t, parts, 2)

		for i, want := range []struct {
			nodes []model.NodeID
			vms   []model.VMID
		}{
			{builder.Nodes("A"), builder.VMs("vm1")},
			{builder.Nodes("C"), builder.VMs("vm3", "vm4")},
		} {
			cstrs := parts[i].Instance.Constraints
			require.Len(t, cstrs, 2)
			assert.Equal(t, constraint.QUARANTINE, cstrs[0].Kind())
			assert.Equal(t, want.nodes, cstrs[0].InvolvedNodes())
			pr, ok := cstrs[1].(*constraint.Preserve)
			require.True(t, ok)
			assert.Equal(t, want.vms, pr.InvolvedVMs())
			assert.Equal(t, 3, pr.Amount)
		}
	})

	t.Run("a single part keeps the model", func(t *testing.T) {
		parts, err := NewFixedSize(10).Split(alg.Instance{Model: builder.Model()})
		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.Same(t, builder.Model(), parts[0].Instance.Model)
	})

	t.Run("invalid size", func(t *testing.T) {
		_, err := NewFixedSize(0).Split(alg.Instance{Model: builder.Model()})
		assert.Error(t, err)
	})
}

func TestSolve(t *testing.T) {
	t.Run("plans are merged", func(t *testing.T) {
		builder := overloadedPairs()
		inst := alg.Instance{Model: builder.Model()}
		res, err := Solve(context.Background(), alg.DefaultParameters(), inst, NewFixedSize(2), 2)
		require.NoError(t, err)
		require.Equal(t, cp.Optimal, res.Status)
		require.Len(t, res.Parts, 2)
		require.NotNil(t, res.Plan)

		assert.Len(t, res.Plan.ActionsOf(plan.MigrateVM), 2)
		assert.Same(t, builder.Model(), res.Plan.Origin())
		require.NoError(t, constraint.CheckPlan(res.Plan, nil))

		result := testing_tool.ApplyPlan(res.Plan)
		assert.Empty(t, result.OverloadedNodes())
		assert.Equal(t, 2, res.Objective)
		assert.Equal(t, 4, res.Stats.NbNodes)
	})

	t.Run("one infeasible part", func(t *testing.T) {
		builder := overloadedPairs()
		inst := alg.Instance{
			Model:       builder.Model(),
			Constraints: []constraint.SatConstraint{constraint.NewOffline(builder.Node("D"))},
		}
		res, err := Solve(context.Background(), alg.DefaultParameters(), inst, NewFixedSize(2), 0)
		require.NoError(t, err)
		assert.Equal(t, cp.Infeasible, res.Status)
		assert.Nil(t, res.Plan)
		assert.Equal(t, cp.Optimal, res.Parts[0].Status)
		assert.Equal(t, cp.Infeasible, res.Parts[1].Status)
	})

	t.Run("colliding plans", func(t *testing.T) {
		builder := overloadedPairs()
		whole := alg.Instance{Model: builder.Model()}
		// the same part twice acts twice on the same VMs
		parts, err := NewFixedSize(2).Split(whole)
		require.NoError(t, err)
		_, err = SolveParts(context.Background(), alg.DefaultParameters(), builder.Model(), []Part{parts[0], parts[0]}, 1)
		var inconsistent *alg.InconsistencyError
		assert.ErrorAs(t, err, &inconsistent)
	})
}
