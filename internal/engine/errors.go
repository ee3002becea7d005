package engine

import (
	"errors"
	"fmt"
)

// ErrNotImplemented reports a missing objective capability: a gradient
// or hessian was requested from an objective that only provides costs.
var ErrNotImplemented = errors.New("objective does not implement this operation")

// ErrLineSearchFailed is returned by a solver step whose nested line
// search could not terminate positively. The executor maps it to
// Terminated(LineSearchFailed) instead of failing the run, so the
// best-so-far result stays a regular outcome.
var ErrLineSearchFailed = errors.New("line search failed")

// EvaluationError wraps a failed objective evaluation. Op is one of
// OpCost, OpGradient, OpHessian.
type EvaluationError struct {
	Op  string
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error (%s): %v", e.Op, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func (e *EvaluationError) Is(target error) bool {
	_, ok := target.(*EvaluationError)
	return ok
}

// NumericalError reports non-finite values or linear-algebra breakdown
// inside a solver step.
type NumericalError struct {
	Op     string
	Detail string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error (%s): %s", e.Op, e.Detail)
}

func (e *NumericalError) Is(target error) bool {
	_, ok := target.(*NumericalError)
	return ok
}

// Failure phases used in RunError.
const (
	FailureInit       = "init"
	FailureIteration  = "iteration"
	FailureObserver   = "observer"
	FailureCheckpoint = "checkpoint"
)

// RunError is the error result of a failed run: which part broke, at
// which iteration, and the underlying cause. The best-so-far state
// remains available on the run's Result.
type RunError struct {
	Failure string
	Iter    uint64
	Err     error
}

func (e *RunError) Error() string {
	if e.Failure == FailureInit {
		return fmt.Sprintf("run failed during init: %v", e.Err)
	}
	return fmt.Sprintf("run failed at iteration %d (%s): %v", e.Iter, e.Failure, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
