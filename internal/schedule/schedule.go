// Package schedule holds the assignment of tasks to launched VMs.
//
// The ledger is a bidirectional index: VM id -> ordered task list (execution
// order) and task id -> owning VM id. Every mutation bumps a generation
// counter that, together with the pool version, identifies the schedule state
// timing values were computed against.
package schedule

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"esdwb/internal/cloud"
	"esdwb/internal/workflow"
)

// Schedule maps tasks onto VMs of one pool.
//
// It is not safe for concurrent mutation.
type Schedule struct {
	pool       *cloud.Pool
	queues     map[int][]*workflow.Task
	owner      map[string]int
	generation uint64
}

// New returns an empty schedule over pool.
func New(pool *cloud.Pool) *Schedule {
	return &Schedule{
		pool:   pool,
		queues: make(map[int][]*workflow.Task),
		owner:  make(map[string]int),
	}
}

// Pool returns the pool the scheduled VMs belong to.
func (s *Schedule) Pool() *cloud.Pool { return s.pool }

// Revision identifies the current assignment and operating-point state.
// It changes on every assign, dismiss, launch and scale.
func (s *Schedule) Revision() uint64 { return s.generation + s.pool.Version() }

// Len returns the number of assigned tasks.
func (s *Schedule) Len() int { return len(s.owner) }

// Assign appends t to vm's queue.
func (s *Schedule) Assign(t *workflow.Task, vm *cloud.VM) error {
	if id, ok := s.owner[t.ID]; ok {
		return &AssignmentError{Kind: ErrAlreadyAssigned, TaskID: t.ID, VMID: id}
	}
	if got, ok := s.pool.Get(vm.ID()); !ok || got != vm {
		return &AssignmentError{Kind: cloud.ErrUnknownVM, TaskID: t.ID, VMID: vm.ID()}
	}
	s.queues[vm.ID()] = append(s.queues[vm.ID()], t)
	s.owner[t.ID] = vm.ID()
	s.generation++
	return nil
}

// Dismiss removes t from vm's queue. The VM disappears from VMs once its
// queue is empty.
func (s *Schedule) Dismiss(t *workflow.Task, vm *cloud.VM) error {
	id, ok := s.owner[t.ID]
	if !ok {
		return &AssignmentError{Kind: ErrNotAssigned, TaskID: t.ID, VMID: vm.ID()}
	}
	if id != vm.ID() {
		return &AssignmentError{Kind: ErrNotOnVM, TaskID: t.ID, VMID: vm.ID()}
	}
	q := s.queues[id]
	pos := indexOf(q, t)
	q = append(q[:pos:pos], q[pos+1:]...)
	if len(q) == 0 {
		delete(s.queues, id)
	} else {
		s.queues[id] = q
	}
	delete(s.owner, t.ID)
	s.generation++
	return nil
}

// VM returns the VM t is assigned to.
func (s *Schedule) VM(t *workflow.Task) (*cloud.VM, bool) {
	id, ok := s.owner[t.ID]
	if !ok {
		return nil, false
	}
	return s.pool.Get(id)
}

// MustVM is VM for callers that require t to be placed.
func (s *Schedule) MustVM(t *workflow.Task) *cloud.VM {
	vm, ok := s.VM(t)
	if !ok {
		panic(&AssignmentError{Kind: ErrNotAssigned, TaskID: t.ID, VMID: -1})
	}
	return vm
}

// Tasks returns vm's queue in execution order.
func (s *Schedule) Tasks(vm *cloud.VM) []*workflow.Task {
	q := s.queues[vm.ID()]
	out := make([]*workflow.Task, len(q))
	copy(out, q)
	return out
}

// HasTasks reports whether vm has at least one task queued.
func (s *Schedule) HasTasks(vm *cloud.VM) bool { return len(s.queues[vm.ID()]) > 0 }

// VMs returns the VMs with at least one task, ordered by id.
func (s *Schedule) VMs() []*cloud.VM {
	ids := make([]int, 0, len(s.queues))
	for id := range s.queues {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*cloud.VM, 0, len(ids))
	for _, id := range ids {
		vm, _ := s.pool.Get(id)
		out = append(out, vm)
	}
	return out
}

// Previous returns the task queued immediately before t on its VM.
func (s *Schedule) Previous(t *workflow.Task) (*workflow.Task, bool) {
	q, pos := s.position(t)
	if pos <= 0 {
		return nil, false
	}
	return q[pos-1], true
}

// Next returns the task queued immediately after t on its VM.
func (s *Schedule) Next(t *workflow.Task) (*workflow.Task, bool) {
	q, pos := s.position(t)
	if pos < 0 || pos+1 >= len(q) {
		return nil, false
	}
	return q[pos+1], true
}


// MustNext is Next for callers that already checked a follower exists.
func (s *Schedule) MustNext(t *workflow.Task) *workflow.Task {
	n, ok := s.Next(t)
	if !ok {
		panic(s.neighborError(t))
	}
	return n
}

// Dump writes a human readable listing grouped by VM id ascending.
func (s *Schedule) Dump(w io.Writer) error {
	for _, vm := range s.VMs() {
		q := s.queues[vm.ID()]
		names := make([]string, len(q))
		for i, t := range q {
			names[i] = t.ID
		}
		if _, err := fmt.Fprintf(w, "%s: [%s]\n", vm, strings.Join(names, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schedule) position(t *workflow.Task) ([]*workflow.Task, int) {
	id, ok := s.owner[t.ID]
	if !ok {
		return nil, -1
	}
	q := s.queues[id]
	return q, indexOf(q, t)
}

func (s *Schedule) neighborError(t *workflow.Task) error {
	id, ok := s.owner[t.ID]
	if !ok {
		return &AssignmentError{Kind: ErrNotAssigned, TaskID: t.ID, VMID: -1}
	}
	return &AssignmentError{Kind: ErrNoNeighbor, TaskID: t.ID, VMID: id}
}

func indexOf(q []*workflow.Task, t *workflow.Task) int {
	for i, x := range q {
		if x.ID == t.ID {
			return i
		}
	}
	return -1
}
