// Package report renders planning results: per-run ledgers and schedules,
// per-workflow summaries, and normalized comparison tables across workflow
// sizes.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"esdwb/internal/ledger"
	"esdwb/internal/planner"
	"esdwb/internal/timing"
)

// LedgerHeader is the header row of ledger CSV files.
var LedgerHeader = []string{"Task", "Surplus", "Budget", "Min. cost", "Max. cost", "Vm", "Cost", "Update", "Tier", "Reused from"}

// Outcome is the result of one variant on one workflow. Exactly one of
// Result and Err is set.
type Outcome struct {
	Variant planner.Variant
	Result  *planner.Result
	Err     error
}

// Run collects the outcomes of every variant on one workflow.
type Run struct {
	Workflow string
	Size     int
	Deadline float64
	Budget   float64
	Outcomes []Outcome
}

// Metrics are the normalized figures of one outcome. Failed outcomes carry NaN.
type Metrics struct {
	Makespan float64 // makespan / deadline
	Cost     float64 // cost / budget
	Energy   float64 // energy / lowest energy among the run's outcomes

	// DeadlineViolation is how far the makespan overshoots the deadline, in
	// percent of the deadline. Zero when the deadline is met.
	DeadlineViolation float64
}

// Normalize computes Metrics for every outcome of r, in outcome order.
func Normalize(r Run) []Metrics {
	var energies []float64
	for _, o := range r.Outcomes {
		if o.Result != nil {
			energies = append(energies, o.Result.Energy)
		}
	}
	minEnergy := math.NaN()
	if len(energies) > 0 {
		minEnergy = floats.Min(energies)
	}

	out := make([]Metrics, len(r.Outcomes))
	for i, o := range r.Outcomes {
		if o.Result == nil {
			out[i] = Metrics{Makespan: math.NaN(), Cost: math.NaN(), Energy: math.NaN(), DeadlineViolation: math.NaN()}
			continue
		}
		out[i] = Metrics{
			Makespan: timing.Ratio(o.Result.Makespan, r.Deadline),
			Cost:     timing.Ratio(o.Result.Cost, r.Budget),
			Energy:   timing.Ratio(o.Result.Energy, minEnergy),

			DeadlineViolation: violation(o.Result.Makespan, r.Deadline),
		}
	}
	return out
}

func violation(makespan, deadline float64) float64 {
	if makespan < deadline {
		return 0
	}
	return 100 * timing.Ratio(makespan-deadline, deadline)
}

// WriteLedger writes rows as CSV with LedgerHeader.
func WriteLedger(w io.Writer, rows []ledger.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LedgerHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.TaskID,
			formatFloat(r.Surplus),
			formatFloat(r.Budget),
			formatFloat(r.MinCost),
			formatFloat(r.MaxCost),
			strconv.Itoa(r.VMID),
			formatFloat(r.Cost),
			formatFloat(r.Update),
			string(r.Tier),
			r.ReusedFrom.OrElse(""),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSchedule writes the VM listing of res followed by per-task timings in
// planning order.
func WriteSchedule(w io.Writer, res *planner.Result) error {
	if _, err := fmt.Fprintf(w, "%s schedule\n\n", res.Variant); err != nil {
		return err
	}
	if err := res.Schedule.Dump(w); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\n%-12s %4s %12s %12s\n", "task", "vm", "start", "finish"); err != nil {
		return err
	}
	m := res.Model
	for _, t := range res.Order {
		vm := res.Schedule.MustVM(t)
		if _, err := fmt.Fprintf(w, "%-12s %4d %12.3f %12.3f\n", t.ID, vm.ID(), m.AST(t), m.AFT(t)); err != nil {
			return err
		}
	}
	return nil
}

// WriteResults writes the human readable summary of r.
func WriteResults(w io.Writer, r Run) error {
	metrics := Normalize(r)
	p := &printer{w: w}
	p.printf("Workflow: %s (%d tasks)\n", r.Workflow, r.Size)
	p.printf("Deadline: %s\n", formatFloat(r.Deadline))
	p.printf("Budget: %s\n", formatFloat(r.Budget))
	for i, o := range r.Outcomes {
		p.printf("\n%s\n", o.Variant)
		if o.Err != nil {
			p.printf("  failed: %v\n", o.Err)
			continue
		}
		res := o.Result
		p.printf("  Makespan: %s\n", formatFloat(res.Makespan))
		p.printf("  Cost: %s\n", formatFloat(res.Cost))
		p.printf("  Energy consumption: %s (%s before optimization)\n", formatFloat(res.Energy), formatFloat(res.PlannedEnergy))
		p.printf("  VMs: %d, down-scaled: %d\n", res.Schedule.Pool().Len(), res.Optimization.Downscaled)
		p.printf("  Deadline violation: %s%%\n", formatFloat(metrics[i].DeadlineViolation))
		p.printf("  Normalized makespan: %s\n", formatFloat(metrics[i].Makespan))
		p.printf("  Normalized cost: %s\n", formatFloat(metrics[i].Cost))
		p.printf("  Normalized energy consumption: %s\n", formatFloat(metrics[i].Energy))
	}
	return p.err
}

// Metric selects one column of Metrics.
type Metric string

const (
	NormMakespan Metric = "norm-makespan"
	NormCost     Metric = "norm-cost"
	NormEnergy   Metric = "norm-energy-consumption"

	// DeadlineViolation tables carry an extra column with the percentage of
	// planned runs whose makespan exceeds the deadline.
	DeadlineViolation Metric = "deadline-violation"
)

// AllMetrics lists every comparison table, in file order.
var AllMetrics = []Metric{NormMakespan, NormCost, NormEnergy, DeadlineViolation}

// ViolatedRunsHeader heads the aggregate column of DeadlineViolation tables.
const ViolatedRunsHeader = "Violated runs (%)"

func (m Metric) pick(x Metrics) float64 {
	switch m {
	case NormMakespan:
		return x.Makespan
	case NormCost:
		return x.Cost
	case DeadlineViolation:
		return x.DeadlineViolation
	default:
		return x.Energy
	}
}

// WriteNormalized writes one comparison table: a column per run ordered by
// size, a row per variant.
func WriteNormalized(w io.Writer, metric Metric, runs []Run) error {
	sorted := append([]Run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Size < sorted[j].Size })

	cw := csv.NewWriter(w)
	header := []string{"No. of Tasks"}
	for _, r := range sorted {
		header = append(header, strconv.Itoa(r.Size))
	}
	if metric == DeadlineViolation {
		header = append(header, ViolatedRunsHeader)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	values := make(map[planner.Variant][]string, len(planner.Variants))
	for _, r := range sorted {
		byVariant := make(map[planner.Variant]float64, len(r.Outcomes))
		for i, m := range Normalize(r) {
			byVariant[r.Outcomes[i].Variant] = metric.pick(m)
		}
		for _, v := range planner.Variants {
			x, ok := byVariant[v]
			if !ok {
				x = math.NaN()
			}
			values[v] = append(values[v], formatFloat(x))
		}
	}
	for _, v := range planner.Variants {
		row := append([]string{v.String()}, values[v]...)
		if metric == DeadlineViolation {
			row = append(row, formatFloat(ViolatedRuns(sorted, v)))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ViolatedRuns is the percentage of the runs planned by v whose makespan
// exceeds the deadline. Failed and missing outcomes are not counted; NaN when
// v planned none of runs.
func ViolatedRuns(runs []Run, v planner.Variant) float64 {
	planned, violated := 0, 0
	for _, r := range runs {
		for _, o := range r.Outcomes {
			if o.Variant != v || o.Result == nil {
				continue
			}
			planned++
			if o.Result.Makespan > r.Deadline {
				violated++
			}
		}
	}
	return 100 * timing.Ratio(float64(violated), float64(planned))
}

// GroupByWorkflow splits runs per workflow name, preserving order within a group.
func GroupByWorkflow(runs []Run) (names []string, groups map[string][]Run) {
	groups = make(map[string][]Run)
	for _, r := range runs {
		if _, ok := groups[r.Workflow]; !ok {
			names = append(names, r.Workflow)
		}
		groups[r.Workflow] = append(groups[r.Workflow], r)
	}
	return names, groups
}

func formatFloat(x float64) string {
	if math.IsNaN(x) {
		return "NaN"
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
