package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/amsen20/reconf/internal/config"
	"github.com/amsen20/reconf/internal/instance"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const overloaded = `
resources: [{name: cpu}]
nodes:
  - {id: 0, capacities: {cpu: 4}}
  - {id: 1, capacities: {cpu: 4}}
vms:
  - {id: 0, state: running, host: 0, consumptions: {cpu: 2}}
  - {id: 1, state: running, host: 0, consumptions: {cpu: 3}}
`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSolveCommand(t *testing.T) {
	path := writeFile(t, "instance.yaml", overloaded)

	t.Run("yaml output", func(t *testing.T) {
		out, err := run(t, "solve", "-f", path, "--time-limit", "5000")
		require.NoError(t, err)

		var desc instance.PlanDesc
		require.NoError(t, yaml.Unmarshal([]byte(out), &desc))
		assert.Equal(t, "OPTIMAL", desc.Status)
		require.Len(t, desc.Actions, 1)
		assert.Equal(t, "migrate_vm", desc.Actions[0].Kind)
		assert.Equal(t, 5000, config.SchedulerGeneralConfig.TimeLimit)
	})

	t.Run("partitioned to a file", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "plan.json")
		_, err := run(t, "solve", "-f", path, "--partition-size", "2", "--json", "-o", output)
		require.NoError(t, err)
		content, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"status": "OPTIMAL"`)
	})

	t.Run("missing instance", func(t *testing.T) {
		_, err := run(t, "solve", "-f", filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
}

func TestConfigLayers(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "time_limit: 2000\nseed: 7\nworkers: 3\n")
	path := writeFile(t, "instance.yaml", overloaded)

	t.Setenv("RECONF_SEED", "11")
	_, err := run(t, "solve", "-f", path, "--config", cfgPath, "--workers", "2")
	require.NoError(t, err)

	cfg := config.SchedulerGeneralConfig
	// file
	assert.Equal(t, 2000, cfg.TimeLimit)
	// environment over file
	assert.Equal(t, int64(11), cfg.Seed)
	// flag over file
	assert.Equal(t, 2, cfg.Workers)

	_, err = run(t, "solve", "-f", path, "--workers", "-1")
	assert.Error(t, err)
}

func TestLoadConfigBindsCommandFlags(t *testing.T) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().String("listen", "", "")
	cmd.Flags().Int("period", 0, "")
	require.NoError(t, cmd.Flags().Set("listen", ":9000"))
	t.Setenv("RECONF_PERIOD", "5000")

	cfg, err := loadConfig(v, cmd)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, 5000, cfg.DaemonPeriodDuration)
}

func TestSimCommand(t *testing.T) {
	scenario := writeFile(t, "scenario.json", `{
  "nodes": [{"name": "n1", "cpu": 4, "memory": 4}],
  "frames": [{"new_vms": [{"name": "a", "cpu": 1, "memory": 1}]}]
}`)
	report := filepath.Join(t.TempDir(), "report.json")

	out, err := run(t, "sim", "-f", scenario, "--algorithm", "firstFit", "-o", report)
	require.NoError(t, err)
	assert.Contains(t, out, "0.250000, 1, 0")
	_, err = os.Stat(report)
	assert.NoError(t, err)

	_, err = run(t, "sim", "-f", scenario, "--algorithm", "random")
	assert.Error(t, err)
}

func TestServeCommandNeedsConnector(t *testing.T) {
	_, err := run(t, "serve", "--connector", "carrier-pigeon")
	assert.Error(t, err)

	_, err = run(t, "serve", "--connector", "file")
	assert.Error(t, err)
}
