// Package naive builds the one-VM-per-task baseline schedules and the
// workflow-level deadline and budget bounds derived from them.
package naive

import (
	"github.com/pkg/errors"

	"esdwb/internal/cloud"
	"esdwb/internal/schedule"
	"esdwb/internal/timing"
	"esdwb/internal/workflow"
)

// Schedule visits every task breadth first from the entry tasks and places
// each on a freshly launched instance of typ, in a pool of its own.
func Schedule(wf *workflow.Workflow, typ *cloud.VMType) (*schedule.Schedule, error) {
	s := schedule.New(cloud.NewPool())
	visited := make(map[string]bool, wf.Len())
	queue := make([]*workflow.Task, 0, wf.Len())

	for _, entry := range wf.Entries() {
		visited[entry.ID] = true
		queue = append(queue, entry)
	}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if err := s.Assign(t, s.Pool().Launch(typ)); err != nil {
			return nil, errors.Wrapf(err, "naive schedule on type %d", typ.ID)
		}
		for _, succ := range t.Successors() {
			if !visited[succ.ID] {
				visited[succ.ID] = true
				queue = append(queue, succ)
			}
		}
	}
	return s, nil
}

// Bounds are the per-workflow limits the planner works within.
type Bounds struct {
	Reference      *timing.Model // naive schedule on the reference archetype
	Makespan       float64       // estimated makespan of Reference
	Deadline       float64       // alpha * Makespan
	MinCost        float64       // cheapest-archetype naive total cost
	MaxCost        float64       // costliest-archetype naive total cost
	Budget         float64       // MinCost + beta * (MaxCost - MinCost)
	InitialSurplus float64       // beta * (MaxCost - MinCost)
}

// ComputeBounds derives Bounds from the naive schedules. A nil reference
// selects the catalog's fastest archetype.
func ComputeBounds(wf *workflow.Workflow, c *cloud.Catalog, bandwidth, alpha, beta float64, reference *cloud.VMType) (Bounds, error) {
	if reference == nil {
		reference = c.Fastest()
	}
	total := func(typ *cloud.VMType) (*timing.Model, error) {
		s, err := Schedule(wf, typ)
		if err != nil {
			return nil, err
		}
		return timing.New(wf, s, bandwidth), nil
	}

	ref, err := total(reference)
	if err != nil {
		return Bounds{}, err
	}
	cheap, err := total(c.Cheapest())
	if err != nil {
		return Bounds{}, err
	}
	costly, err := total(c.Costliest())
	if err != nil {
		return Bounds{}, err
	}

	b := Bounds{
		Reference: ref,
		Makespan:  ref.EstimatedMakespan(),
		MinCost:   cheap.TotalCost(),
		MaxCost:   costly.TotalCost(),
	}
	b.Deadline = alpha * b.Makespan
	b.InitialSurplus = beta * (b.MaxCost - b.MinCost)
	b.Budget = b.MinCost + b.InitialSurplus
	return b, nil
}
