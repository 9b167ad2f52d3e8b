// Because it is a testing package, no errors are returned,
// all problems cause a panic.

package testing_tool

import (
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/amsen20/reconf/logging"
)

var log = logging.Get()

// ApplyPlan returns the model reached once every action of the plan is
// applied on its origin.
func ApplyPlan(p *plan.ReconfigurationPlan) *model.Model {
	for _, action := range p.Actions() {
		log.Debug().Msgf("applying %s", action)
	}
	result, err := p.Result()
	if err != nil {
		panic(err)
	}
	return result
}
