// Package saga runs a sequence of steps and, when one fails, undoes the
// completed ones in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is one unit of work. Compensate may be nil.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

type State string

const (
	StatePending      State = "PENDING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateCompensating State = "COMPENSATING"
	StateCompensated  State = "COMPENSATED"
	StateFailed       State = "FAILED"
)

// ErrCompensation marks a saga whose rollback did not fully succeed.
var ErrCompensation = errors.New("compensation failed")

type Saga struct {
	id     string
	name   string
	steps  []Step
	state  State
	logger *zap.Logger
}

func New(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:     uuid.NewString(),
		name:   name,
		state:  StatePending,
		logger: logger.With(zap.String("saga", name)),
	}
}

func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

func (s *Saga) State() State { return s.state }

// Run executes the steps in order. On the first failure it compensates the
// completed steps, last first, and returns the step error. If any
// compensation fails as well the returned error also matches ErrCompensation.
func (s *Saga) Run(ctx context.Context) error {
	s.state = StateRunning
	s.logger.Debug("saga started", zap.String("saga_id", s.id), zap.Int("steps", len(s.steps)))

	for i, step := range s.steps {
		err := step.Execute(ctx)
		if err == nil {
			continue
		}

		s.logger.Error("saga step failed",
			zap.String("saga_id", s.id),
			zap.String("step", step.Name),
			zap.Error(err),
		)
		stepErr := fmt.Errorf("saga %s failed at step %s: %w", s.name, step.Name, err)

		if cerr := s.compensate(ctx, i); cerr != nil {
			s.state = StateFailed
			return errors.Join(stepErr, fmt.Errorf("%w: %w", ErrCompensation, cerr))
		}
		s.state = StateCompensated
		return stepErr
	}

	s.state = StateCompleted
	s.logger.Debug("saga completed", zap.String("saga_id", s.id))
	return nil
}

// compensate undoes steps[0:done] in reverse order. Every compensation is
// attempted even if an earlier one fails.
func (s *Saga) compensate(ctx context.Context, done int) error {
	s.state = StateCompensating
	var errs []error
	for i := done - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("saga compensation failed",
				zap.String("saga_id", s.id),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
