package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/amsen20/reconf/alg"
	"github.com/amsen20/reconf/internal/constraint"
	"github.com/amsen20/reconf/internal/instance"
	"github.com/amsen20/reconf/internal/model"
	"github.com/amsen20/reconf/internal/plan"
	"github.com/pkg/errors"
)

// ConstantConnector is implemented for testing purposes: it holds a model
// in memory and applies the executed actions on it.
type ConstantConnector struct {
	mutex       sync.Mutex
	model       *model.Model
	constraints []constraint.SatConstraint
	executed    []plan.Action
}

func NewConstantConnector(m *model.Model, cstrs []constraint.SatConstraint) *ConstantConnector {
	return &ConstantConnector{
		model:       m.Clone(),
		constraints: cstrs,
	}
}

// NewFileConnector seeds a constant connector with an instance file.
func NewFileConnector(path string) (*ConstantConnector, error) {
	desc, err := instance.Load(path)
	if err != nil {
		return nil, err
	}
	inst, err := desc.Build()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid instance %s", path)
	}
	return NewConstantConnector(inst.Model, inst.Constraints), nil
}

func (c *ConstantConnector) Snapshot(ctx context.Context) (alg.Instance, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return alg.Instance{Model: c.model.Clone(), Constraints: c.constraints}, nil
}

func (c *ConstantConnector) Execute(ctx context.Context, action plan.Action) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !action.Apply(c.model) {
		return fmt.Errorf("action %s is not applicable", action)
	}
	c.executed = append(c.executed, action)
	log.Debug().Msgf("executed %s", action)
	return nil
}

// Executed lists the actions performed so far.
func (c *ConstantConnector) Executed() []plan.Action {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]plan.Action{}, c.executed...)
}
