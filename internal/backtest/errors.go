package backtest

import (
	"errors"
	"fmt"

	"amm-curve-lab/internal/curve"
	"amm-curve-lab/internal/domain"
)

var (
	// ErrUnorderedSeries is returned when a row does not come strictly after
	// the previous one.
	ErrUnorderedSeries = errors.New("series is not strictly ordered by timestamp")

	// ErrDriverMismatch is returned when the amm driver gets a curve without a clock.
	ErrDriverMismatch = errors.New("curve does not support driver")
)

// StepError reports the row that aborted a run. It carries enough to
// reproduce the failing step.
type StepError struct {
	Index     int
	Timestamp int64
	Input     float64
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (timestamp %d, input %g): %v", e.Index, e.Timestamp, e.Input, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type mismatchError struct {
	driver domain.Driver
	kind   curve.Kind
}

func (e *mismatchError) Error() string {
	return fmt.Sprintf("%v: %s driver with %s curve", ErrDriverMismatch, e.driver, e.kind)
}

func (e *mismatchError) Unwrap() error {
	return ErrDriverMismatch
}
