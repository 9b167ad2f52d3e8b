package cli

import (
	"os"
	"strings"

	"github.com/amsen20/reconf/internal/config"
	"github.com/amsen20/reconf/logging"
	"github.com/amsen20/reconf/statistics"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var log = logging.Get()

const envPrefix = "RECONF"

// NewRootCommand builds the command tree. Settings come from the YAML file
// given by --config, then RECONF_* environment variables, then flags.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "reconf",
		Short: "Reconfiguration planner for virtualized data-centers",
		Long: `reconf computes plans that move VMs and switch nodes to reach a placement
satisfying placement, capacity and state constraints, while minimizing the
sum of the completion times of the actions.

Environment Variables:
  RECONF_TIME_LIMIT, RECONF_SEED, RECONF_PARTITION_SIZE, ...  override the config file`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			statistics.Init()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to the YAML config file")
	flags.Int("time-limit", 0, "Solver time limit in milliseconds")
	flags.Int("max-backtracks", 0, "Backtrack limit of the solver, 0 for none")
	flags.Int("horizon", 0, "Latest date of the plan, 0 to derive it")
	flags.Int64("seed", 0, "Seed of the random tie-breaking")
	flags.Bool("optimize", true, "Keep improving after the first plan")
	flags.Bool("repair", false, "Only move VMs involved in a problem")
	flags.Bool("restarts", true, "Restart the search periodically")
	flags.Int("partition-size", 0, "Number of nodes per partition, 0 to solve at once")
	flags.Int("workers", 0, "Partitions solved in parallel, 0 for the number of CPUs")
	if err := v.BindPFlags(flags); err != nil {
		log.Err(err).Msg("could not bind the persistent flags")
	}

	rootCmd.AddCommand(newSolveCommand(v), newServeCommand(v), newSimCommand(v))
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfig overlays the environment and the flags set by the user on the
// config file, or on the defaults without file.
func loadConfig(v *viper.Viper, cmd *cobra.Command) (config.GeneralConfig, error) {
	cfg := config.Default()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return cfg, errors.Wrapf(err, "could not bind the flags of %s", cmd.Name())
	}

	if path := v.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	overrides := map[string]func(key string){
		"time-limit":     func(key string) { cfg.TimeLimit = v.GetInt(key) },
		"max-backtracks": func(key string) { cfg.MaxBacktracks = v.GetInt(key) },
		"horizon":        func(key string) { cfg.Horizon = v.GetInt(key) },
		"seed":           func(key string) { cfg.Seed = v.GetInt64(key) },
		"optimize":       func(key string) { cfg.Optimize = v.GetBool(key) },
		"repair":         func(key string) { cfg.RepairMode = v.GetBool(key) },
		"restarts":       func(key string) { cfg.Restarts = v.GetBool(key) },
		"partition-size": func(key string) { cfg.PartitionSize = v.GetInt(key) },
		"workers":        func(key string) { cfg.Workers = v.GetInt(key) },
		"namespace":      func(key string) { cfg.Namespace = v.GetString(key) },
		"connector":      func(key string) { cfg.ConnectorKind = v.GetString(key) },
		"instance":       func(key string) { cfg.InstancePath = v.GetString(key) },
		"listen":         func(key string) { cfg.Listen = v.GetString(key) },
		"period":         func(key string) { cfg.DaemonPeriodDuration = v.GetInt(key) },
	}
	for key, set := range overrides {
		if isSet(cmd.Flags(), key) {
			set(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	config.SchedulerGeneralConfig = cfg
	return cfg, nil
}

// isSet tells whether the user gave the key, so that flag defaults do not
// hide the config file.
func isSet(flags *pflag.FlagSet, key string) bool {
	if f := flags.Lookup(key); f != nil && f.Changed {
		return true
	}
	_, ok := os.LookupEnv(envName(key))
	return ok
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
