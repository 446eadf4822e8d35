package rank

import (
	"math"
	"testing"

	"esdwb/internal/cloud"
	"esdwb/internal/schedule"
	"esdwb/internal/timing"
	"esdwb/internal/workflow"
)

func model(t *testing.T, specs []workflow.Spec, edges []workflow.Edge) (*timing.Model, *cloud.Catalog) {
	t.Helper()
	wf, err := workflow.New("w", specs, edges)
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	slow, _ := cloud.NewVMType(0, 1, []float64{1}, []float64{1})
	fast, _ := cloud.NewVMType(1, 2, []float64{1}, []float64{3})
	cat, err := cloud.NewCatalog(slow, fast)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return timing.New(wf, schedule.New(cloud.NewPool()), 1.0), cat
}

func TestPriorities_CriticalPathSum(t *testing.T) {
	const gigabit = (1 << 30) / 8
	m, cat := model(t,
		[]workflow.Spec{
			{ID: "A", Length: 1500},
			{ID: "B", Length: 3000, Inputs: []workflow.FileItem{{Name: "A.out", Size: 2 * gigabit}}},
			{ID: "C", Length: 1500},
		},
		[]workflow.Edge{{From: "A", To: "B"}, {From: "A", To: "C"}},
	)
	prio := Priorities(m, cat)

	// avg(1500) = (1.5 + 0.5) / 2 = 1, avg(3000) = 2
	want := map[string]float64{"A": 1 + 2 + 2, "B": 2, "C": 1}
	for id, w := range want {
		if math.Abs(prio[id]-w) > 1e-9 {
			t.Fatalf("priority(%s) = %v want %v", id, prio[id], w)
		}
	}
}

func TestOrder_PredecessorsFirstAndStableTies(t *testing.T) {
	m, cat := model(t,
		[]workflow.Spec{{ID: "E"}, {ID: "A", Length: 10}, {ID: "B", Length: 10}, {ID: "C", Length: 900}, {ID: "D"}},
		[]workflow.Edge{{From: "A", To: "C"}, {From: "B", To: "C"}, {From: "C", To: "D"}},
	)
	got := Order(m, cat)

	pos := make(map[string]int, len(got))
	for i, task := range got {
		pos[task.ID] = i
	}
	for _, task := range got {
		for _, s := range task.Successors() {
			if pos[task.ID] > pos[s.ID] {
				t.Fatalf("%s ranked after successor %s", task.ID, s.ID)
			}
		}
	}
	if pos["A"] > pos["B"] {
		t.Fatalf("equal priorities must keep topological order: %v", pos)
	}
	if pos["E"] > pos["D"] {
		t.Fatalf("zero-priority ties must keep topological order: %v", pos)
	}
}
