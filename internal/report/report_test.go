package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/markphelps/optional"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esdwb/internal/cloud"
	"esdwb/internal/ledger"
	"esdwb/internal/planner"
	"esdwb/internal/schedule"
	"esdwb/internal/workflow"
)

func TestWriteLedger(t *testing.T) {
	rows := []ledger.Row{
		{TaskID: "A", Surplus: 0.5, Budget: 1.5, MinCost: 1, MaxCost: 2, VMID: 0, Cost: 1.25, Update: -0.25, Tier: ledger.TierFresh},
		{TaskID: "B", Surplus: 0.25, Budget: 1.25, MinCost: 1, MaxCost: 2, VMID: 0, Cost: 1, Update: 0, Tier: ledger.TierReuse, ReusedFrom: optional.NewString("A")},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteLedger(&buf, rows))

	want := "Task,Surplus,Budget,Min. cost,Max. cost,Vm,Cost,Update,Tier,Reused from\n" +
		"A,0.5,1.5,1,2,0,1.25,-0.25,fresh,\n" +
		"B,0.25,1.25,1,2,0,1,0,reuse,A\n"
	assert.Equal(t, want, buf.String())
}

func outcome(v planner.Variant, makespan, cost, energy float64) Outcome {
	return Outcome{Variant: v, Result: &planner.Result{Variant: v, Makespan: makespan, Cost: cost, Energy: energy}}
}

func TestNormalize(t *testing.T) {
	r := Run{
		Workflow: "Montage", Size: 25, Deadline: 10, Budget: 4,
		Outcomes: []Outcome{
			outcome(planner.ESDWB, 5, 2, 30),
			outcome(planner.ModifiedESDWB, 8, 4, 20),
		},
	}
	m := Normalize(r)
	require.Len(t, m, 2)
	assert.InDelta(t, 0.5, m[0].Makespan, 1e-12)
	assert.InDelta(t, 0.5, m[0].Cost, 1e-12)
	assert.InDelta(t, 1.5, m[0].Energy, 1e-12)
	assert.InDelta(t, 1.0, m[1].Energy, 1e-12)
}

func TestWriteNormalized_SortsBySizeAndMarksFailures(t *testing.T) {
	runs := []Run{
		{Workflow: "Montage", Size: 50, Deadline: 10, Budget: 1, Outcomes: []Outcome{
			outcome(planner.ESDWB, 5, 1, 2),
			{Variant: planner.ModifiedESDWB, Err: errors.New("boom")},
		}},
		{Workflow: "Montage", Size: 25, Deadline: 4, Budget: 2, Outcomes: []Outcome{
			outcome(planner.ESDWB, 2, 1, 4),
			outcome(planner.ModifiedESDWB, 1, 2, 2),
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteNormalized(&buf, NormMakespan, runs))
	assert.Equal(t, "No. of Tasks,25,50\nESDWB,0.5,0.5\nModified-ESDWB,0.25,NaN\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteNormalized(&buf, NormEnergy, runs))
	assert.Equal(t, "No. of Tasks,25,50\nESDWB,2,1\nModified-ESDWB,1,NaN\n", buf.String())
}

func TestWriteNormalized_DeadlineViolationAggregatesRuns(t *testing.T) {
	runs := []Run{
		{Workflow: "Montage", Size: 50, Deadline: 10, Budget: 1, Outcomes: []Outcome{
			outcome(planner.ESDWB, 15, 1, 2),
			{Variant: planner.ModifiedESDWB, Err: errors.New("boom")},
		}},
		{Workflow: "Montage", Size: 25, Deadline: 4, Budget: 2, Outcomes: []Outcome{
			outcome(planner.ESDWB, 5, 1, 4),
			outcome(planner.ModifiedESDWB, 4, 2, 2),
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteNormalized(&buf, DeadlineViolation, runs))
	assert.Equal(t, "No. of Tasks,25,50,Violated runs (%)\nESDWB,25,50,100\nModified-ESDWB,0,NaN,0\n", buf.String())

	assert.InDelta(t, 100.0, ViolatedRuns(runs, planner.ESDWB), 1e-12)
	assert.InDelta(t, 0.0, ViolatedRuns(runs, planner.ModifiedESDWB), 1e-12)
	assert.True(t, math.IsNaN(ViolatedRuns(runs[:1], planner.ModifiedESDWB)))
}

func TestWriteResults_ReportsDeadlineViolation(t *testing.T) {
	r := Run{Workflow: "Montage", Size: 25, Deadline: 8, Budget: 1, Outcomes: []Outcome{
		outcome(planner.ESDWB, 10, 1, 2),
		outcome(planner.ModifiedESDWB, 6, 1, 2),
	}}
	for _, o := range r.Outcomes {
		o.Result.Schedule = schedule.New(cloud.NewPool())
	}
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "ESDWB\n  Makespan: 10\n")
	assert.Contains(t, out, "Deadline violation: 25%\n")
	assert.Contains(t, out, "Deadline violation: 0%\n")
}

func TestWriteResults_ReportsFailure(t *testing.T) {
	r := Run{Workflow: "Sipht", Size: 30, Deadline: 10, Budget: 1, Outcomes: []Outcome{
		{Variant: planner.ESDWB, Err: errors.New("task unplaceable")},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, r))
	assert.Contains(t, buf.String(), "Workflow: Sipht (30 tasks)")
	assert.Contains(t, buf.String(), "failed: task unplaceable")
}

func TestWriteSchedule_FromPlannerRun(t *testing.T) {
	wf, err := workflow.New("chain",
		[]workflow.Spec{{ID: "A", Length: 1000}, {ID: "B", Length: 1000}},
		[]workflow.Edge{{From: "A", To: "B"}},
	)
	require.NoError(t, err)
	typ, err := cloud.NewVMType(0, 3.6, []float64{1}, []float64{1})
	require.NoError(t, err)
	cat, err := cloud.NewCatalog(typ)
	require.NoError(t, err)
	logger := log.New()
	logger.Out = io.Discard

	res, err := planner.New(wf, cat, planner.Options{Alpha: 1.3, Beta: 0.6, Bandwidth: 1, Logger: logger}).Plan(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSchedule(&buf, res))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "ESDWB schedule\n"))
	assert.Contains(t, out, ": [A, B]")
	assert.Regexp(t, `B\s+0\s+1\.000\s+2\.000`, out)
}

func TestStore_AtomicWritesUnderRunDir(t *testing.T) {
	base := t.TempDir()
	s, err := NewStore(base, "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.RunID())

	require.NoError(t, s.Write("reports/Montage/norm-cost.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "x\n")
		return err
	}))
	data, err := os.ReadFile(s.Path("reports/Montage/norm-cost.csv"))
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))
	assert.Equal(t, Digest([]byte("x\n")), s.Digests()["reports/Montage/norm-cost.csv"])

	require.NoError(t, s.WriteYAML("run.yaml", map[string]float64{"alpha": 1.3}))
	data, err = os.ReadFile(s.Path("run.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "alpha: 1.3\n", string(data))

	err = s.Write("broken.txt", func(io.Writer) error { return errors.New("render failed") })
	require.Error(t, err)
	_, statErr := os.Stat(s.Path("broken.txt"))
	assert.True(t, os.IsNotExist(statErr))
	assert.NotContains(t, s.Digests(), "broken.txt")
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore("", "x")
	assert.Error(t, err)
	_, err = NewStore(t.TempDir(), "a/b")
	assert.Error(t, err)
	s, err := NewStore(t.TempDir(), "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", s.RunID())
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(nil))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "NaN", formatFloat(math.NaN()))
	assert.Equal(t, "0.125", formatFloat(0.125))
}
