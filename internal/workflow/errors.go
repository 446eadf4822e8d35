package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid workflow")
	ErrCycleFound   = errors.New("cycle detected")
)

// GraphError reports why a workflow was rejected. TaskID names the offending
// task when there is one; for a cycle it is the first task of Cycle.
type GraphError struct {
	Kind     error
	Workflow string
	TaskID   string
	Cycle    []string // task ids in edge direction, first id repeated at the end
	Msg      string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Workflow != "" {
		fmt.Fprintf(&b, " in %q", e.Workflow)
	}
	if e.TaskID != "" {
		fmt.Fprintf(&b, ": task %q", e.TaskID)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(wf, task, format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Workflow: wf, TaskID: task, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(wf string, cycle []string) error {
	e := &GraphError{Kind: ErrCycleFound, Workflow: wf, Cycle: cycle}
	switch n := len(cycle) - 1; {
	case n < 1:
		e.Msg = "no witness path"
	case n == 2:
		e.TaskID = cycle[0]
		e.Msg = fmt.Sprintf("%q and %q depend on each other", cycle[0], cycle[1])
	default:
		e.TaskID = cycle[0]
		e.Msg = fmt.Sprintf("%d tasks depend on each other: %s", n, strings.Join(cycle, " -> "))
	}
	return e
}
