// Package rank orders tasks by critical-path priority.
package rank

import (
	"math"
	"sort"

	"esdwb/internal/cloud"
	"esdwb/internal/timing"
	"esdwb/internal/workflow"
)

// Priorities returns, per task id, the average execution time over the
// catalog plus the most expensive chain of transfers and priorities below it.
//
// Transfers are taken from m, which evaluates them against m's schedule.
func Priorities(m *timing.Model, c *cloud.Catalog) map[string]float64 {
	wf := m.Workflow()
	prio := make(map[string]float64, wf.Len())
	order := wf.TopologicalOrder()
	for i := len(order) - 1; i >= 0; i-- {
		t := order[i]
		tail := 0.0
		if succs := t.Successors(); len(succs) > 0 {
			tail = math.Inf(-1)
			for _, s := range succs {
				tail = math.Max(tail, m.TransferTime(t, s)+prio[s.ID])
			}
		}
		prio[t.ID] = timing.AverageExecutionTime(t, c) + tail
	}
	return prio
}

// Order returns the tasks by descending priority. Ties keep the workflow's
// topological order, so a predecessor never follows one of its successors.
func Order(m *timing.Model, c *cloud.Catalog) []*workflow.Task {
	prio := Priorities(m, c)
	out := m.Workflow().TopologicalOrder()
	sort.SliceStable(out, func(i, j int) bool { return prio[out[i].ID] > prio[out[j].ID] })
	return out
}
