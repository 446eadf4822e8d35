package planner

import (
	"errors"
	"fmt"
)

// ErrUnplaceable is the Kind of every UnplaceableTaskError.
var ErrUnplaceable = errors.New("task unplaceable")

// UnplaceableTaskError is returned when no archetype can run a task within
// its budget. The planning run for that variant is aborted.
type UnplaceableTaskError struct {
	Variant Variant
	TaskID  string
	Budget  float64
	MinCost float64
}

func (e *UnplaceableTaskError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: task %s needs at least %.6g but budget is %.6g",
		ErrUnplaceable.Error(), e.Variant, e.TaskID, e.MinCost, e.Budget)
}

func (e *UnplaceableTaskError) Unwrap() error { return ErrUnplaceable }
