package alg

import (
	"time"

	"github.com/amsen20/reconf/internal/config"
	"github.com/amsen20/reconf/internal/duration"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/pkg/errors"
)

type Parameters struct {
	// zero values disable the limit
	TimeLimit     time.Duration
	MaxBacktracks int
	// Horizon bounds every date of the plan. When zero, it is the sum of the
	// durations of every candidate action.
	Horizon int
	Seed    int64
	// Optimize keeps improving after the first solution.
	Optimize bool
	// RepairMode only lets VMs involved in a violated constraint or hosted on
	// an overloaded node move.
	RepairMode  bool
	Restarts    bool
	MaxRestarts int
	Durations   *duration.Evaluators
}

func DefaultParameters() Parameters {
	return Parameters{
		TimeLimit:   10 * time.Second,
		Seed:        1,
		Optimize:    true,
		Restarts:    true,
		MaxRestarts: -1,
		Durations:   duration.Defaults(),
	}
}

// ParametersFromConfig maps the YAML configuration on the solver parameters.
// Configured durations replace the defaults with constants, then the
// migration resource and the attributes apply on top.
func ParametersFromConfig(cfg config.GeneralConfig) (Parameters, error) {
	params := DefaultParameters()
	params.TimeLimit = cfg.TimeLimitDuration()
	params.MaxBacktracks = cfg.MaxBacktracks
	params.Horizon = cfg.Horizon
	params.Seed = cfg.Seed
	params.Optimize = cfg.Optimize
	params.RepairMode = cfg.RepairMode
	params.Restarts = cfg.Restarts
	params.MaxRestarts = cfg.MaxRestarts

	for name, d := range cfg.Durations {
		kind, err := plan.ParseActionKind(name)
		if err != nil {
			return params, errors.Wrap(err, "invalid durations")
		}
		params.Durations.Register(kind, duration.Constant(d))
	}
	if cfg.MigrationResource != "" {
		params.Durations.Register(plan.MigrateVM, duration.LinearToResource(cfg.MigrationResource, cfg.MigrationFactor, 1))
	}
	if cfg.DurationAttributes {
		for _, kind := range plan.ActionKinds() {
			if ev, ok := params.Durations.Get(kind); ok {
				params.Durations.Register(kind, duration.FromAttribute(kind.String(), ev))
			}
		}
	}
	return params, nil
}
