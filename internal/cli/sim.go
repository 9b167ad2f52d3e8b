package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/sim"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSimCommand(v *viper.Viper) *cobra.Command {
	var (
		scenarioPath string
		algorithm    string
		outputPath   string
	)

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Replay a scenario and report the usage of the nodes",
		Long: `Replay a JSON scenario of VM arrivals, departures and node maintenance with
either the solver (minMTTR) or a first-fit placement (firstFit).

Example:
  reconf sim -f sim/scenario.json --algorithm minMTTR -o report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd)
			if err != nil {
				return err
			}
			params, err := alg.ParametersFromConfig(cfg)
			if err != nil {
				return err
			}
			which, err := sim.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			scenario, err := sim.LoadScenario(scenarioPath)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			report, err := sim.Run(ctx, scenario, which, params)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for i := range report.Usage {
				fmt.Fprintf(w, "%f, %d, %d\n", report.Usage[i], report.Actions[i], report.Unplaced[i])
			}
			if outputPath == "" {
				return nil
			}
			content, err := json.MarshalIndent(report, "", " ")
			if err != nil {
				return err
			}
			return os.WriteFile(outputPath, content, 0644)
		},
	}

	cmd.Flags().StringVarP(&scenarioPath, "file", "f", "sim/scenario.json", "Scenario file")
	cmd.Flags().StringVar(&algorithm, "algorithm", "minMTTR", "minMTTR or firstFit")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the JSON report there")
	return cmd
}
