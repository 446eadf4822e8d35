package workflow

import (
	"fmt"
	"strings"
)

// GigabitsPerByte converts file sizes in bytes into transferred data volume.
// Bandwidth elsewhere is expressed in Gbit/s.
const GigabitsPerByte = 8.0 / (1 << 30)

// FileItem is a file a task requires as input.
type FileItem struct {
	Name string  `json:"name" yaml:"name"`
	Size float64 `json:"size" yaml:"size"` // bytes
}

// Spec is the declarative description of a task handed in by ingestion.
type Spec struct {
	ID     string     `json:"id" yaml:"id"`
	Name   string     `json:"name" yaml:"name"`
	Length float64    `json:"length" yaml:"length"` // MI
	Inputs []FileItem `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// Edge is a dependency: To can only start after From finishes.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Task is an immutable node of a Workflow.
type Task struct {
	ID     string
	Name   string
	Length float64

	inputs      []FileItem
	preds       []*Task
	succs       []*Task
	transferred map[string]float64 // predecessor id -> gigabits

	index int // input order
	topo  int // position in the topological order
}

// Predecessors returns the tasks this task depends on, in edge order.
func (t *Task) Predecessors() []*Task { return t.preds }

// Successors returns the tasks depending on this task, in edge order.
func (t *Task) Successors() []*Task { return t.succs }

// Inputs returns the required input files.
func (t *Task) Inputs() []FileItem {
	out := make([]FileItem, len(t.inputs))
	copy(out, t.inputs)
	return out
}

// TransferredData returns the data volume (gigabits) shipped from predID to t.
func (t *Task) TransferredData(predID string) float64 { return t.transferred[predID] }

// IsEntry reports whether t has no predecessors.
func (t *Task) IsEntry() bool { return len(t.preds) == 0 }

// IsExit reports whether t has no successors.
func (t *Task) IsExit() bool { return len(t.succs) == 0 }

// Index returns the task's position in the input order.
func (t *Task) Index() int { return t.index }

// TopoIndex returns the task's position in the workflow's topological order.
func (t *Task) TopoIndex() int { return t.topo }

func (t *Task) String() string {
	return fmt.Sprintf("Task{id=%s, name=%s, length=%.2f}", t.ID, t.Name, t.Length)
}

// computeTransferredData sums, per predecessor, the sizes of the input files
// whose name contains the predecessor id as a token (split on '_' and '.').
func (t *Task) computeTransferredData() {
	t.transferred = make(map[string]float64, len(t.preds))
	for _, p := range t.preds {
		for _, f := range t.inputs {
			if hasToken(f.Name, p.ID) {
				t.transferred[p.ID] += f.Size * GigabitsPerByte
			}
		}
	}
}

func hasToken(name, token string) bool {
	fields := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '.' })
	for _, f := range fields {
		if f == token {
			return true
		}
	}
	return false
}
