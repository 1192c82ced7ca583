// Package saga runs a sequence of steps where every step that completed is
// undone, in reverse order, when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"carshare/internal/domain"
	"carshare/internal/metrics"
	"carshare/internal/pkg/logging"
)

type Func func(ctx context.Context) error

type step struct {
	name       string
	action     Func
	compensate Func
}

type Saga struct {
	name   string
	steps  []step
	logger logging.Logger
}

func New(name string, logger logging.Logger) *Saga {
	return &Saga{name: name, logger: logging.OrDiscard(logger)}
}

// AddStep appends a step. compensate may be nil for steps with nothing to undo.
func (s *Saga) AddStep(name string, action, compensate Func) *Saga {
	s.steps = append(s.steps, step{name: name, action: action, compensate: compensate})
	return s
}

// Run executes the steps in order. On failure the completed steps are
// compensated in reverse and the failing step's error is returned unchanged.
// If any compensation fails as well, the result wraps
// domain.ErrFatalInconsistency together with every error seen.
func (s *Saga) Run(ctx context.Context) error {
	done := make([]step, 0, len(s.steps))
	for _, st := range s.steps {
		if err := st.action(ctx); err != nil {
			s.logger.WithFields(logging.Fields{
				"saga":  s.name,
				"step":  st.name,
				"error": err.Error(),
			}).Warn("saga step failed, compensating")
			return s.compensate(ctx, done, err)
		}
		done = append(done, st)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []step, cause error) error {
	// Compensations must run even if the request that started the saga is gone.
	cctx := context.WithoutCancel(ctx)

	var failures []error
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.compensate == nil {
			continue
		}
		if err := st.compensate(cctx); err != nil {
			metrics.SagaCompensations.WithLabelValues(s.name, "failed").Inc()
			s.logger.WithFields(logging.Fields{
				"saga":  s.name,
				"step":  st.name,
				"error": err.Error(),
			}).Error("compensation failed")
			failures = append(failures, fmt.Errorf("compensate %s: %w", st.name, err))
			continue
		}
		metrics.SagaCompensations.WithLabelValues(s.name, "ok").Inc()
	}

	if len(failures) == 0 {
		return cause
	}
	return errors.Join(append([]error{domain.ErrFatalInconsistency, cause}, failures...)...)
}
