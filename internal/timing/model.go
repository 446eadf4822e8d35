// Package timing evaluates the time, cost and energy equations of a workflow
// against a schedule.
//
// Every value reflects the schedule (assignments and VM operating points) at
// the moment of the call. Recursive quantities are memoized per schedule
// revision, so trial assign/dismiss during planning costs one recomputation
// of the affected values instead of an exponential walk of the graph.
package timing

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"esdwb/internal/cloud"
	"esdwb/internal/schedule"
	"esdwb/internal/workflow"
)

type lstKey struct {
	id       string
	makespan float64
}

type memo struct {
	revision uint64
	est      map[string]float64
	pst      map[string]float64
	ast      map[string]float64
	lst      map[lstKey]float64
}

func newMemo(revision uint64) *memo {
	return &memo{
		revision: revision,
		est:      make(map[string]float64),
		pst:      make(map[string]float64),
		ast:      make(map[string]float64),
		lst:      make(map[lstKey]float64),
	}
}

// Model binds a workflow to a schedule and a network bandwidth (Gbit/s).
type Model struct {
	wf        *workflow.Workflow
	sched     *schedule.Schedule
	bandwidth float64
	cache     *memo
}

// New returns a Model over wf and s.
func New(wf *workflow.Workflow, s *schedule.Schedule, bandwidth float64) *Model {
	return &Model{wf: wf, sched: s, bandwidth: bandwidth, cache: newMemo(s.Revision())}
}

// Workflow returns the workflow the model evaluates.
func (m *Model) Workflow() *workflow.Workflow { return m.wf }

// Schedule returns the schedule the model evaluates.
func (m *Model) Schedule() *schedule.Schedule { return m.sched }

func (m *Model) memo() *memo {
	if rev := m.sched.Revision(); rev != m.cache.revision {
		m.cache = newMemo(rev)
	}
	return m.cache
}

// ExecutionTime is the run time of t on vm at vm's current operating point.
func ExecutionTime(t *workflow.Task, vm *cloud.VM) float64 { return t.Length / vm.Speed() }

// Exec is the run time of t on the VM it is assigned to.
func (m *Model) Exec(t *workflow.Task) float64 { return ExecutionTime(t, m.sched.MustVM(t)) }

// TransferTime is the time needed to ship from's output to to. It is zero
// when both tasks are placed on the same VM.
func (m *Model) TransferTime(from, to *workflow.Task) float64 {
	vf, okF := m.sched.VM(from)
	vt, okT := m.sched.VM(to)
	if okF && okT && vf.ID() == vt.ID() {
		return 0
	}
	return safeDiv(to.TransferredData(from.ID), m.bandwidth)
}

// EST is the earliest start time of t ignoring VM serialization.
func (m *Model) EST(t *workflow.Task) float64 {
	c := m.memo()
	if v, ok := c.est[t.ID]; ok {
		return v
	}
	v := 0.0
	for _, p := range t.Predecessors() {
		v = math.Max(v, m.EST(p)+m.Exec(p)+m.TransferTime(p, t))
	}
	c.est[t.ID] = v
	return v
}

// EFT is EST plus the execution time.
func (m *Model) EFT(t *workflow.Task) float64 { return m.EST(t) + m.Exec(t) }

// LST is the latest start time of t that still lets the workflow finish by makespan.
func (m *Model) LST(t *workflow.Task, makespan float64) float64 {
	c := m.memo()
	key := lstKey{id: t.ID, makespan: makespan}
	if v, ok := c.lst[key]; ok {
		return v
	}
	exec := m.Exec(t)
	v := makespan - exec
	if succs := t.Successors(); len(succs) > 0 {
		v = math.Inf(1)
		for _, s := range succs {
			v = math.Min(v, m.LST(s, makespan)-m.TransferTime(t, s)-exec)
		}
	}
	c.lst[key] = v
	return v
}

// LFT is LST plus the execution time.
func (m *Model) LFT(t *workflow.Task, makespan float64) float64 {
	return m.LST(t, makespan) + m.Exec(t)
}

// Deadline is alpha times the latest finish time of t.
func (m *Model) Deadline(t *workflow.Task, alpha, makespan float64) float64 {
	return alpha * m.LFT(t, makespan)
}

// PST is the possible start time of t given the actual placement of its
// predecessors. VM contention is not considered.
func (m *Model) PST(t *workflow.Task) float64 {
	c := m.memo()
	if v, ok := c.pst[t.ID]; ok {
		return v
	}
	v := 0.0
	for _, p := range t.Predecessors() {
		v = math.Max(v, m.AST(p)+m.Exec(p)+m.TransferTime(p, t))
	}
	c.pst[t.ID] = v
	return v
}

// AST is the actual start time: PST, delayed until the task queued before t
// on the same VM has finished. An unplaced task starts at its PST.
func (m *Model) AST(t *workflow.Task) float64 {
	c := m.memo()
	if v, ok := c.ast[t.ID]; ok {
		return v
	}
	v := m.PST(t)
	if prev, ok := m.sched.Previous(t); ok {
		v = math.Max(v, m.AFT(prev))
	}
	c.ast[t.ID] = v
	return v
}

// AFT is AST plus the execution time on the assigned VM.
func (m *Model) AFT(t *workflow.Task) float64 { return m.AST(t) + m.Exec(t) }

// MinSpeedForDeadline is the processing speed t needs to finish by deadline
// when started at its PST. A closed window yields +Inf.
func (m *Model) MinSpeedForDeadline(t *workflow.Task, deadline float64) float64 {
	return minSpeed(t.Length, deadline-m.PST(t))
}

// MinSpeedWithinWindow is the processing speed t needs to run from its AST
// to end. A closed window yields +Inf.
func (m *Model) MinSpeedWithinWindow(t *workflow.Task, end float64) float64 {
	return minSpeed(t.Length, end-m.AST(t))
}

func minSpeed(length, window float64) float64 {
	if window <= 0 {
		return math.Inf(1)
	}
	return length / window
}

// ExtendedFinishTime is the latest t could finish without delaying any
// successor, or makespan for an exit task.
func (m *Model) ExtendedFinishTime(t *workflow.Task, makespan float64) float64 {
	succs := t.Successors()
	if len(succs) == 0 {
		return makespan
	}
	v := math.Inf(1)
	for _, s := range succs {
		v = math.Min(v, m.AST(s)-m.TransferTime(t, s))
	}
	return v
}

// PossibleExtendedFinishTime narrows the extended finish time by the task
// queued after t on its VM and by one billed execution at top speed.
//
// Under Legacy only a task with both a predecessor and a follower on its VM
// takes the follower into account; the first task of a queue is bounded like
// one with no follower.
func (m *Model) PossibleExtendedFinishTime(t *workflow.Task, makespan float64, rule WindowRule) float64 {
	exft := m.ExtendedFinishTime(t, makespan)
	vm := m.sched.MustVM(t)
	ast := m.AST(t)
	billed := math.Ceil(t.Length / vm.Type().MaxSpeed())
	next, hasNext := m.sched.Next(t)

	if rule == Legacy {
		_, hasPrev := m.sched.Previous(t)
		if !hasNext || !hasPrev {
			return math.Min(exft, ast+billed)
		}
		if exft < ast {
			return math.Min(exft, m.AST(next)+billed)
		}
		return math.Min(ast, m.AST(next)+billed)
	}

	v := math.Min(exft, ast+billed)
	if hasNext {
		v = math.Min(v, m.AST(next))
	}
	return v
}

// Cost is the billed cost of t on vm: whole seconds times the cost per second.
func Cost(t *workflow.Task, vm *cloud.VM) float64 {
	return math.Ceil(ExecutionTime(t, vm)) * vm.Type().CostPerSecond
}

// CostOnType is the billed cost of t on a fresh instance of typ.
func CostOnType(t *workflow.Task, typ *cloud.VMType) float64 {
	return math.Ceil(t.Length/typ.MaxSpeed()) * typ.CostPerSecond
}

// UnbilledCostOnType is the cost of t on a fresh instance of typ for its
// exact execution time, without rounding up to whole seconds.
func UnbilledCostOnType(t *workflow.Task, typ *cloud.VMType) float64 {
	return t.Length / typ.MaxSpeed() * typ.CostPerSecond
}

// MinimumCost is the lowest CostOnType over the catalog.
func MinimumCost(t *workflow.Task, c *cloud.Catalog) float64 {
	return floats.Min(costsOnTypes(t, c))
}

// MaximumCost is the highest CostOnType over the catalog.
func MaximumCost(t *workflow.Task, c *cloud.Catalog) float64 {
	return floats.Max(costsOnTypes(t, c))
}

func costsOnTypes(t *workflow.Task, c *cloud.Catalog) []float64 {
	types := c.Types()
	out := make([]float64, len(types))
	for i, typ := range types {
		out[i] = CostOnType(t, typ)
	}
	return out
}

// Energy is the energy t consumes on vm at its current operating point.
func Energy(t *workflow.Task, vm *cloud.VM) float64 { return vm.Power() * ExecutionTime(t, vm) }
