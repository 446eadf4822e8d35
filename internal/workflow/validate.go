package workflow

import (
	"golang.org/x/exp/slices"
)

// validateAcyclic rejects the workflow when Kahn's ordering cannot consume
// every task, reporting one dependency cycle as witness.
func (w *Workflow) validateAcyclic() error {
	if len(w.kahnOrder()) == len(w.tasks) {
		return nil
	}
	return cycleError(w.name, w.findCycle())
}

// kahnOrder returns input indices in dependency order. Among the tasks whose
// predecessors are all released, the one earliest in input order goes first.
// It stops short of len(w.tasks) when the dependencies contain a cycle.
func (w *Workflow) kahnOrder() []int {
	pending := make([]int, len(w.indeg))
	copy(pending, w.indeg)

	var released []int // sorted ascending
	for i, n := range pending {
		if n == 0 {
			released = append(released, i)
		}
	}

	out := make([]int, 0, len(pending))
	for len(released) > 0 {
		next := released[0]
		released = released[1:]
		out = append(out, next)
		for _, succ := range w.outgoing[next] {
			if pending[succ]--; pending[succ] == 0 {
				at, _ := slices.BinarySearch(released, succ)
				released = slices.Insert(released, at, succ)
			}
		}
	}
	return out
}

// findCycle walks dependencies depth first from each task in input order and
// returns the ids of the first cycle it closes.
func (w *Workflow) findCycle() []string {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]int, len(w.tasks))
	var path []*Task
	var cycle []*Task

	var visit func(t *Task) bool
	visit = func(t *Task) bool {
		state[t.index] = onPath
		path = append(path, t)
		for _, succ := range t.succs {
			switch state[succ.index] {
			case unvisited:
				if visit(succ) {
					return true
				}
			case onPath:
				at := slices.Index(path, succ)
				cycle = append(append(cycle, path[at:]...), succ)
				return true
			}
		}
		path = path[:len(path)-1]
		state[t.index] = done
		return false
	}

	for _, t := range w.tasks {
		if state[t.index] == unvisited && visit(t) {
			break
		}
	}

	ids := make([]string, len(cycle))
	for i, t := range cycle {
		ids[i] = t.ID
	}
	return ids
}
