package domain

import (
	"errors"
	"fmt"
)

// ErrDepthExceeded is returned when a run hits its recursion limit.
var ErrDepthExceeded = errors.New("recursion limit reached")

// ErrMalformedConfig is returned when a structured AutoML config cannot be used.
var ErrMalformedConfig = errors.New("malformed automl config")

// ErrTargetNotFound is returned when the configured target is not a dataset column.
var ErrTargetNotFound = errors.New("target column not found in dataset")

// ErrMissingDataset is returned when a step needs a dataset the run lacks.
var ErrMissingDataset = errors.New("dataset required but not provided")

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrUnknownStep is returned when the graph references an unregistered step.
var ErrUnknownStep = errors.New("unknown step")

// StepError wraps a failure raised while a step ran.
type StepError struct {
	Step  StepID
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// RouteError is returned when a router predicate picks an undeclared target.
type RouteError struct {
	From   StepID
	Target StepID
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("route from %s selected undeclared target %s", e.From, e.Target)
}

// ErrEmptyTask is returned when a run has no inbound message to work on.
var ErrEmptyTask = errors.New("no task message")

// InputError rejects one field of an inbound run request.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}
