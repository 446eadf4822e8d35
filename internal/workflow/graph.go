package workflow

type edgeIndex struct {
	from int
	to   int
}

// Workflow is an immutable, validated DAG of tasks.
//
// It is safe for concurrent read access.
type Workflow struct {
	name  string
	tasks []*Task // input order
	byID  map[string]*Task
	order []*Task // topological order

	outgoing [][]int // by input index, edge order
	indeg    []int   // by input index
}

// New builds and validates a Workflow.
//
// Validation runs immediately and rejects:
//   - an empty task list
//   - empty or duplicate task ids
//   - negative task lengths
//   - edges referencing unknown tasks
//   - duplicate edges and self-loops
//   - any cycle (direct or indirect)
func New(name string, specs []Spec, edges []Edge) (*Workflow, error) {
	if len(specs) == 0 {
		return nil, invalidf(name, "", "no tasks")
	}

	byID := make(map[string]*Task, len(specs))
	tasks := make([]*Task, 0, len(specs))
	for i, s := range specs {
		if s.ID == "" {
			return nil, invalidf(name, "", "task %d has no id", i)
		}
		if _, exists := byID[s.ID]; exists {
			return nil, invalidf(name, s.ID, "declared twice")
		}
		if s.Length < 0 {
			return nil, invalidf(name, s.ID, "negative length %v MI", s.Length)
		}
		inputs := make([]FileItem, len(s.Inputs))
		copy(inputs, s.Inputs)
		t := &Task{ID: s.ID, Name: s.Name, Length: s.Length, inputs: inputs, index: i}
		byID[s.ID] = t
		tasks = append(tasks, t)
	}

	seen := make(map[edgeIndex]struct{}, len(edges))
	outgoing := make([][]int, len(tasks))
	indeg := make([]int, len(tasks))
	for _, e := range edges {
		from, okFrom := byID[e.From]
		to, okTo := byID[e.To]
		if !okFrom {
			return nil, invalidf(name, e.To, "depends on unknown task %q", e.From)
		}
		if !okTo {
			return nil, invalidf(name, e.From, "feeds unknown task %q", e.To)
		}
		if from == to {
			return nil, invalidf(name, e.From, "depends on itself")
		}
		pair := edgeIndex{from: from.index, to: to.index}
		if _, exists := seen[pair]; exists {
			return nil, invalidf(name, e.To, "depends on %q twice", e.From)
		}
		seen[pair] = struct{}{}

		from.succs = append(from.succs, to)
		to.preds = append(to.preds, from)
		outgoing[from.index] = append(outgoing[from.index], to.index)
		indeg[to.index]++
	}

	w := &Workflow{
		name:     name,
		tasks:    tasks,
		byID:     byID,
		outgoing: outgoing,
		indeg:    indeg,
	}
	if err := w.validateAcyclic(); err != nil {
		return nil, err
	}

	idx := w.kahnOrder()
	w.order = make([]*Task, len(idx))
	for pos, i := range idx {
		w.order[pos] = tasks[i]
		tasks[i].topo = pos
	}
	for _, t := range tasks {
		t.computeTransferredData()
	}
	return w, nil
}

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// Len returns the number of tasks.
func (w *Workflow) Len() int { return len(w.tasks) }

// Task returns a task by id.
func (w *Workflow) Task(id string) (*Task, bool) {
	t, ok := w.byID[id]
	return t, ok
}

// Tasks returns the tasks in input order.
func (w *Workflow) Tasks() []*Task {
	out := make([]*Task, len(w.tasks))
	copy(out, w.tasks)
	return out
}

// TopologicalOrder returns the tasks in a deterministic topological order.
//
// When the input order is already topological it is returned unchanged.
func (w *Workflow) TopologicalOrder() []*Task {
	out := make([]*Task, len(w.order))
	copy(out, w.order)
	return out
}

// Entries returns the tasks without predecessors, in input order.
func (w *Workflow) Entries() []*Task {
	var out []*Task
	for _, t := range w.tasks {
		if t.IsEntry() {
			out = append(out, t)
		}
	}
	return out
}

// Exits returns the tasks without successors, in input order.
func (w *Workflow) Exits() []*Task {
	var out []*Task
	for _, t := range w.tasks {
		if t.IsExit() {
			out = append(out, t)
		}
	}
	return out
}
