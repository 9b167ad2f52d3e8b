package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/config"
	"github.com/amsen20/reconf/internal/connector"
	"github.com/amsen20/reconf/internal/cp"
	"github.com/amsen20/reconf/internal/partition"
	"github.com/amsen20/reconf/internal/utils"
	"github.com/amsen20/reconf/logging"
	"github.com/amsen20/reconf/statistics"
)

var log = logging.Component("scheduler")

// Scheduler periodically takes a snapshot through its connector, computes a
// reconfiguration plan and executes it.
type Scheduler struct {
	Connector connector.Connector
	Params    alg.Parameters
	// PartitionSize splits the nodes in chunks solved in parallel, zero
	// solves the whole snapshot at once.
	PartitionSize int
	Workers       int
	Period        time.Duration
}

func New(conn connector.Connector, cfg config.GeneralConfig) (*Scheduler, error) {
	params, err := alg.ParametersFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		Connector:     conn,
		Params:        params,
		PartitionSize: cfg.PartitionSize,
		Workers:       cfg.Workers,
		Period:        cfg.DaemonPeriod(),
	}, nil
}

func (scheduler *Scheduler) solve(ctx context.Context, inst alg.Instance) (*alg.Result, error) {
	if scheduler.PartitionSize <= 0 {
		return alg.Solve(ctx, scheduler.Params, inst)
	}
	res, err := partition.Solve(ctx, scheduler.Params, inst, partition.NewFixedSize(scheduler.PartitionSize), scheduler.Workers)
	if err != nil {
		return nil, err
	}
	return &res.Result, nil
}

// RunOnce does a single round: snapshot, solve and execute. A round without
// plan is not an error, the returned result tells why there is none.
func (scheduler *Scheduler) RunOnce(ctx context.Context) (*alg.Result, error) {
	statistics.Change("rounds", 1)

	inst, err := scheduler.Connector.Snapshot(ctx)
	if err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("connector could not take a snapshot")
	}

	m := inst.Model
	for _, n := range m.OverloadedNodes() {
		log.Info().Msgf("node %s is overloaded on dimensions %v", n, utils.Exceeding(m.Load(n), m.CapacityVector(n)))
	}

	res, err := scheduler.solve(ctx, inst)
	if err != nil {
		return nil, err
	}
	if res.Status != cp.Optimal && res.Status != cp.Feasible {
		log.Warn().Msgf("no plan this round: %s", res.Status)
		return res, nil
	}
	statistics.Set("last_plan_size", res.Plan.Size())
	statistics.Set("last_plan_cost", res.Objective)
	if res.Plan.Size() == 0 {
		log.Info().Msg("nothing to do")
		return res, nil
	}

	exec := newExecutor(scheduler.Connector, inst.Model)
	if err := exec.run(ctx, res.Plan); err != nil {
		return res, err
	}
	return res, nil
}

// Run does a round every period until the context is done.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	if scheduler.Period <= 0 {
		return fmt.Errorf("invalid daemon period %v", scheduler.Period)
	}
	ticker := time.NewTicker(scheduler.Period)
	defer ticker.Stop()

	for {
		if _, err := scheduler.RunOnce(ctx); err != nil {
			log.Err(err).Msg("round failed")
			statistics.Change("failed_rounds", 1)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
