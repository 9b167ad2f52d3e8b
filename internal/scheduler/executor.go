package scheduler

import (
	"context"
	"fmt"

	"github.com/amsen20/reconf/internal/connector"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/amsen20/reconf/statistics"
)

type planElement struct {
	action  plan.Action
	do      func(ctx context.Context) error
	isValid func(expected *model.Model) bool
	after   func(expected *model.Model) error
}

func getActionPlanElement(conn connector.Connector, action plan.Action) *planElement {
	return &planElement{
		action: action,
		do: func(ctx context.Context) error {
			if err := conn.Execute(ctx, action); err != nil {
				return err
			}

			log.Info().Msgf("--- executed %s", action)
			return nil
		},
		isValid: func(expected *model.Model) bool {
			return action.Apply(expected.Clone())
		},
		after: func(expected *model.Model) error {
			if !action.Apply(expected) {
				return fmt.Errorf("could not apply %s on the expected state", action)
			}
			return nil
		},
	}
}

// executor replays a plan on the connector in the order of the start dates.
// It keeps the state the cluster should be in to refuse actions that no
// longer make sense.
type executor struct {
	connector connector.Connector
	expected  *model.Model
}

func newExecutor(conn connector.Connector, origin *model.Model) *executor {
	return &executor{
		connector: conn,
		expected:  origin.Clone(),
	}
}

// run stops at the first failing action: the ones after it may depend on it.
func (exec *executor) run(ctx context.Context, p *plan.ReconfigurationPlan) error {
	for _, action := range p.Actions() {
		if err := ctx.Err(); err != nil {
			return err
		}

		element := getActionPlanElement(exec.connector, action)
		if !element.isValid(exec.expected) {
			statistics.Change("failed_actions", 1)
			return fmt.Errorf("action %s is not applicable", action)
		}
		if err := element.do(ctx); err != nil {
			statistics.Change("failed_actions", 1)
			log.Err(err).Msgf("could not execute %s", action)

			return fmt.Errorf("could not execute %s", action)
		}
		if err := element.after(exec.expected); err != nil {
			return err
		}
		statistics.Change("executed_actions", 1)
	}
	return nil
}
