package connector

import (
	"context"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/amsen20/reconf/logging"
)

// Connector is the bridge between the planner and a datacenter: it reads
// the current state along with what is asked from it, and performs the
// actions of a plan.
type Connector interface {
	Snapshot(ctx context.Context) (alg.Instance, error)
	Execute(ctx context.Context, action plan.Action) error
}

var log = logging.Get()
