package timing

import (
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"esdwb/internal/cloud"
	"esdwb/internal/workflow"
)

// AverageExecutionTime is the mean run time of t over the catalog's
// archetypes at their top speed.
func AverageExecutionTime(t *workflow.Task, c *cloud.Catalog) float64 {
	types := c.Types()
	execs := make([]float64, len(types))
	for i, typ := range types {
		execs[i] = t.Length / typ.MaxSpeed()
	}
	return stat.Mean(execs, nil)
}

// EstimatedMakespan is the latest EFT over the exit tasks.
func (m *Model) EstimatedMakespan() float64 {
	return maxOver(m.wf.Exits(), m.EFT)
}

// ActualMakespan is the latest AFT over the exit tasks.
func (m *Model) ActualMakespan() float64 {
	return maxOver(m.wf.Exits(), m.AFT)
}

// TotalCost sums the billed cost of every task on its VM.
func (m *Model) TotalCost() float64 {
	return m.sumOver(Cost)
}

// TotalEnergy sums the energy of every task on its VM.
func (m *Model) TotalEnergy() float64 {
	return m.sumOver(Energy)
}

func (m *Model) sumOver(f func(*workflow.Task, *cloud.VM) float64) float64 {
	tasks := m.wf.Tasks()
	vals := make([]float64, len(tasks))
	for i, t := range tasks {
		vals[i] = f(t, m.sched.MustVM(t))
	}
	return floats.Sum(vals)
}

func maxOver(tasks []*workflow.Task, f func(*workflow.Task) float64) float64 {
	if len(tasks) == 0 {
		return 0
	}
	vals := make([]float64, len(tasks))
	for i, t := range tasks {
		vals[i] = f(t)
	}
	return floats.Max(vals)
}

// safeDiv returns num/den, or zero when den is zero.
func safeDiv[T constraints.Float](num, den T) T {
	if den == 0 {
		return 0
	}
	return num / den
}

// Ratio is num/den with a zero or non-finite denominator mapped to NaN, for
// normalized metrics.
func Ratio[T constraints.Float](num, den T) T {
	if den == 0 || math.IsInf(float64(den), 0) || math.IsNaN(float64(den)) {
		return T(math.NaN())
	}
	return num / den
}
