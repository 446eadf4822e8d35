package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrNotAssigned     = errors.New("task not assigned")
	ErrAlreadyAssigned = errors.New("task already assigned")
	ErrNotOnVM         = errors.New("task not on vm")
	ErrNoNeighbor      = errors.New("no neighbor on vm")
)

// AssignmentError reports a query or mutation that does not match the ledger.
//
// Mutations return it; Must* queries panic with it, since asking for the
// placement of an unplaced task is a caller bug.
type AssignmentError struct {
	Kind   error
	TaskID string
	VMID   int
}

func (e *AssignmentError) Error() string {
	if e == nil {
		return ""
	}
	if e.VMID < 0 {
		return fmt.Sprintf("%s: task %s", e.Kind.Error(), e.TaskID)
	}
	return fmt.Sprintf("%s: task %s, vm %d", e.Kind.Error(), e.TaskID, e.VMID)
}

func (e *AssignmentError) Unwrap() error { return e.Kind }
