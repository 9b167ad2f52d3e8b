package sim

import (
	"context"
	"testing"
	"time"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/model/testing_tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario(t *testing.T) {
	scenario, err := LoadScenario("scenario.json")
	require.NoError(t, err)
	require.Len(t, scenario.Frames, 4)

	params := alg.DefaultParameters()
	params.TimeLimit = 5 * time.Second

	for _, algorithm := range []Algorithm{FIRST_FIT, MIN_MTTR} {
		t.Run(algorithm.String(), func(t *testing.T) {
			// frames are rewritten when imported
			scenario, err := LoadScenario("scenario.json")
			require.NoError(t, err)

			report, err := Run(context.Background(), scenario, algorithm, params)
			require.NoError(t, err)
			assert.Equal(t, algorithm.String(), report.Algorithm)
			require.Len(t, report.Usage, 4)

			// 3 boots, then 2 boots
			assert.Equal(t, 3, report.Actions[0])
			assert.Equal(t, 2, report.Actions[1])
			for i := range report.Usage {
				assert.Zero(t, report.Unplaced[i])
				assert.Zero(t, report.Overloaded[i])
				assert.GreaterOrEqual(t, report.Usage[i], 0.0)
				assert.LessOrEqual(t, report.Usage[i], 1.0)
			}
			// n3 is turned off on request
			assert.Equal(t, []int{3, 3, 2, 2}, report.Online)
		})
	}
}

func TestFirstFitLargestFirst(t *testing.T) {
	builder := testing_tool.New()
	builder.ImportNodes([]*testing_tool.NodeDesc{
		{Name: "A", Cpu: 4, Memory: 4},
		{Name: "B", Cpu: 4, Memory: 4},
	})
	builder.ImportVMs([]*testing_tool.VMDesc{
		{Name: "small", Cpu: 1, Memory: 1, State: model.READY},
		{Name: "big", Cpu: 4, Memory: 1, State: model.READY},
	})
	m := builder.Model()
	require.True(t, m.Mapping().IsReady(builder.VM("big")))

	actions := firstFit(m, nil)
	require.Len(t, actions, 2)
	assert.Equal(t, builder.VM("big"), actions[0].VM)
	assert.Equal(t, builder.Node("A"), actions[0].Node)
	assert.Equal(t, builder.Node("B"), actions[1].Node)
	// computed on a copy
	assert.True(t, m.Mapping().IsReady(builder.VM("big")))
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("minMTTR")
	require.NoError(t, err)
	assert.Equal(t, MIN_MTTR, a)
	_, err = ParseAlgorithm("random")
	assert.Error(t, err)
}
