package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/instance"
	"github.com/amsen20/reconf/internal/partition"
	"github.com/amsen20/reconf/statistics"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSolveCommand(v *viper.Viper) *cobra.Command {
	var (
		instancePath string
		outputPath   string
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Compute the reconfiguration plan of an instance file",
		Long: `Compute the reconfiguration plan of an instance file and print it.

Example:
  reconf solve -f instance.yaml --time-limit 5000 --partition-size 32`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd)
			if err != nil {
				return err
			}
			params, err := alg.ParametersFromConfig(cfg)
			if err != nil {
				return err
			}

			desc, err := instance.Load(instancePath)
			if err != nil {
				return err
			}
			inst, err := desc.Build()
			if err != nil {
				return errors.Wrapf(err, "invalid instance %s", instancePath)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			var res *alg.Result
			if cfg.PartitionSize > 0 {
				merged, err := partition.Solve(ctx, params, inst, partition.NewFixedSize(cfg.PartitionSize), cfg.Workers)
				if err != nil {
					return err
				}
				res = &merged.Result
			} else if res, err = alg.Solve(ctx, params, inst); err != nil {
				return err
			}
			log.Debug().Msg(statistics.Display())

			planDesc := instance.DescribeResult(res)
			var out []byte
			if jsonOutput {
				out, err = json.MarshalIndent(planDesc, "", "  ")
			} else {
				out, err = planDesc.Marshal()
			}
			if err != nil {
				return err
			}
			if outputPath != "" {
				return os.WriteFile(outputPath, out, 0644)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&instancePath, "file", "f", "", "Instance file, YAML or JSON")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the plan there instead of stdout")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of YAML")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
