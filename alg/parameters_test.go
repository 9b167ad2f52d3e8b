package alg

import (
	"testing"
	"time"

	"github.com/amsen20/reconf/internal/config"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/model/testing_tool"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParametersFromConfig(t *testing.T) {
	builder := testing_tool.New()
	builder.ImportNodes([]*testing_tool.NodeDesc{{Name: "A", Cpu: 8, Memory: 8}})
	builder.ImportVMs([]*testing_tool.VMDesc{
		{Name: "vm1", Cpu: 4, Memory: 1, State: model.RUNNING, Host: "A"},
		{Name: "vm2", Cpu: 2, Memory: 1, State: model.RUNNING, Host: "A"},
	})
	m := builder.Model()
	m.Attributes().PutVM(builder.VM("vm2"), "migrate_vm", 3)
	m.Attributes().PutNode(builder.Node("A"), "shutdown_node", 7)

	cfg := config.Default()
	cfg.TimeLimit = 1500
	cfg.Durations = map[string]int{"boot_vm": 4}
	cfg.MigrationResource = testing_tool.CPU
	cfg.MigrationFactor = 2
	cfg.DurationAttributes = true

	params, err := ParametersFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, params.TimeLimit)

	d, err := params.Durations.Evaluate(m, plan.BootVM, int(builder.VM("vm1")))
	require.NoError(t, err)
	assert.Equal(t, 4, d)

	// 2 * 4 + 1
	d, err = params.Durations.Evaluate(m, plan.MigrateVM, int(builder.VM("vm1")))
	require.NoError(t, err)
	assert.Equal(t, 9, d)

	d, err = params.Durations.Evaluate(m, plan.MigrateVM, int(builder.VM("vm2")))
	require.NoError(t, err)
	assert.Equal(t, 3, d)

	d, err = params.Durations.Evaluate(m, plan.ShutdownNode, int(builder.Node("A")))
	require.NoError(t, err)
	assert.Equal(t, 7, d)

	cfg.Durations = map[string]int{"teleport_vm": 1}
	_, err = ParametersFromConfig(cfg)
	assert.Error(t, err)
}
