package cli

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"esdwb/internal/cloud"
	"esdwb/internal/config"
	"esdwb/internal/ledger"
	"esdwb/internal/naive"
	"esdwb/internal/planner"
	"esdwb/internal/report"
	"esdwb/internal/workflow"
)

// Env carries the process facilities Execute writes to.
type Env struct {
	Stderr io.Writer
	Scope  tally.Scope
}

// Result is the outcome of one Execute call.
type Result struct {
	ExitCode int
	RunID    string
	RunDir   string
	Runs     []report.Run
}

// manifest is the run.yaml written at the end of every run.
type manifest struct {
	RunID     string            `yaml:"run_id"`
	Started   string            `yaml:"started"`
	Finished  string            `yaml:"finished"`
	Inputs    []string          `yaml:"inputs"`
	Config    config.Config     `yaml:"config"`
	Runs      []manifestEntry   `yaml:"runs"`
	Artifacts map[string]string `yaml:"artifacts"` // sha256 of every other artifact
}

type manifestEntry struct {
	Workflow string            `yaml:"workflow"`
	Tasks    int               `yaml:"tasks"`
	Deadline float64           `yaml:"deadline"`
	Budget   float64           `yaml:"budget"`
	Variants []manifestVariant `yaml:"variants"`
}

type manifestVariant struct {
	Variant  string  `yaml:"variant"`
	Status   string  `yaml:"status"`
	Error    string  `yaml:"error,omitempty"`
	Makespan float64 `yaml:"makespan,omitempty"`
	Cost     float64 `yaml:"cost,omitempty"`
	Energy   float64 `yaml:"energy,omitempty"`
}

// logSink streams ledger rows to the debug log as they are produced.
type logSink struct {
	logger log.FieldLogger
}

func (s logSink) Record(r ledger.Row) {
	s.logger.WithFields(log.Fields{
		"task":    r.TaskID,
		"vm":      r.VMID,
		"tier":    string(r.Tier),
		"budget":  r.Budget,
		"cost":    r.Cost,
		"surplus": r.Surplus,
	}).Debug("task placed")
}

func newLogger(inv Invocation, w io.Writer) *log.Logger {
	logger := log.New()
	logger.Out = w
	logger.SetLevel(inv.LogLevel)
	if inv.JSONLogs {
		logger.Formatter = &log.JSONFormatter{}
	}
	return logger
}

// ExecuteWithEnv plans every workflow of inv with every variant and writes
// the artifacts of the run under inv.OutputDir/<run-id>/.
//
// A variant that fails on one workflow is reported and the run continues;
// the run then exits with ExitPlanningFailure. Configuration and workflow
// load errors stop the run before anything is planned.
func ExecuteWithEnv(ctx context.Context, inv Invocation, env Env) (Result, error) {
	if env.Stderr == nil {
		env.Stderr = io.Discard
	}
	if env.Scope == nil {
		env.Scope = tally.NoopScope
	}
	started := time.Now().UTC()

	cfg, err := config.Load(inv.Overrides, inv.ConfigFiles...)
	if err != nil {
		return Result{ExitCode: ExitConfigError}, errors.Wrap(err, "config")
	}
	cat, err := cfg.BuildCatalog()
	if err != nil {
		return Result{ExitCode: ExitConfigError}, errors.Wrap(err, "config")
	}

	store, err := report.NewStore(inv.OutputDir, inv.RunID)
	if err != nil {
		return Result{ExitCode: ExitInvalidInvocation}, err
	}
	logger := newLogger(inv, env.Stderr).WithField("run_id", store.RunID())
	logger.WithField("vm_types", cat.Len()).Debug("catalog built")
	variants := inv.Variants
	if len(variants) == 0 {
		variants = planner.Variants
	}
	res := Result{RunID: store.RunID(), RunDir: store.RunDir()}

	workflows, err := LoadWorkflows(inv.DAXPaths, cfg.RuntimeSpeed(cat))
	if err != nil {
		res.ExitCode = ExitCode(err)
		return res, err
	}

	failed := false
	for _, wf := range workflows {
		run, err := planWorkflow(ctx, wf, cat, cfg, variants, logger, env.Scope)
		if err != nil {
			res.ExitCode = ExitInternalError
			return res, err
		}
		if err := writeRun(store, run); err != nil {
			res.ExitCode = ExitInternalError
			return res, err
		}
		for _, o := range run.Outcomes {
			failed = failed || o.Err != nil
		}
		res.Runs = append(res.Runs, run)
	}

	names, groups := report.GroupByWorkflow(res.Runs)
	for _, name := range names {
		for _, metric := range report.AllMetrics {
			rel := path.Join("reports", name, string(metric)+".csv")
			runs := groups[name]
			if err := store.Write(rel, func(w io.Writer) error { return report.WriteNormalized(w, metric, runs) }); err != nil {
				res.ExitCode = ExitInternalError
				return res, err
			}
		}
	}

	m := manifest{
		RunID:     store.RunID(),
		Started:   started.Format(time.RFC3339),
		Finished:  time.Now().UTC().Format(time.RFC3339),
		Inputs:    inv.DAXPaths,
		Config:    cfg,
		Artifacts: store.Digests(),
	}
	for _, r := range res.Runs {
		m.Runs = append(m.Runs, manifestFor(r))
	}
	if err := store.WriteYAML("run.yaml", m); err != nil {
		res.ExitCode = ExitInternalError
		return res, err
	}

	if failed {
		res.ExitCode = ExitPlanningFailure
		return res, &InvocationError{ExitCode: ExitPlanningFailure, Message: "one or more variants failed to plan; see run.yaml"}
	}
	logger.WithField("dir", store.RunDir()).Info("run finished")
	res.ExitCode = ExitSuccess
	return res, nil
}

// planWorkflow runs each of variants on wf. Planning failures are recorded on
// the outcome; only a cancelled ctx or a bounds failure is returned.
func planWorkflow(ctx context.Context, wf *workflow.Workflow, cat *cloud.Catalog, cfg config.Config, variants []planner.Variant, logger log.FieldLogger, scope tally.Scope) (report.Run, error) {
	ref := cfg.Reference(cat)
	bounds, err := naive.ComputeBounds(wf, cat, cfg.BandwidthGbps, cfg.Alpha, cfg.Beta, ref)
	if err != nil {
		return report.Run{}, errors.Wrapf(err, "bounds for %s", wf.Name())
	}
	run := report.Run{Workflow: wf.Name(), Size: wf.Len(), Deadline: bounds.Deadline, Budget: bounds.Budget}
	wfLogger := logger.WithFields(log.Fields{"workflow": wf.Name(), "tasks": wf.Len()})

	for _, v := range variants {
		p := planner.New(wf, cat, planner.Options{
			Variant:    v,
			Alpha:      cfg.Alpha,
			Beta:       cfg.Beta,
			Bandwidth:  cfg.BandwidthGbps,
			Reference:  ref,
			EnergyRule: cfg.WindowRule(),
			Sink:       logSink{logger: wfLogger.WithField("variant", v.String())},
			Logger:     wfLogger,
			Scope:      scope,
		})
		out, err := p.Plan(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report.Run{}, ctxErr
		}
		if err != nil {
			wfLogger.WithError(err).WithField("variant", v.String()).Warn("variant failed")
			run.Outcomes = append(run.Outcomes, report.Outcome{Variant: v, Err: err})
			continue
		}
		run.Outcomes = append(run.Outcomes, report.Outcome{Variant: v, Result: out})
	}
	return run, nil
}

// writeRun stores the schedule and ledger of every successful variant and
// the summary of the run.
func writeRun(store *report.Store, run report.Run) error {
	key := fmt.Sprintf("%s-%d", run.Workflow, run.Size)
	for _, o := range run.Outcomes {
		if o.Result == nil {
			continue
		}
		res := o.Result
		if err := store.Write(path.Join("schedules", o.Variant.String()+"-"+key+".txt"), func(w io.Writer) error {
			return report.WriteSchedule(w, res)
		}); err != nil {
			return err
		}
		if err := store.Write(path.Join("ledgers", o.Variant.String()+"-"+key+".csv"), func(w io.Writer) error {
			return report.WriteLedger(w, res.Ledger)
		}); err != nil {
			return err
		}
	}
	return store.Write(path.Join("results", "Results-"+key+".txt"), func(w io.Writer) error {
		return report.WriteResults(w, run)
	})
}

func manifestFor(r report.Run) manifestEntry {
	e := manifestEntry{Workflow: r.Workflow, Tasks: r.Size, Deadline: r.Deadline, Budget: r.Budget}
	for _, o := range r.Outcomes {
		mv := manifestVariant{Variant: o.Variant.String()}
		if o.Err != nil {
			mv.Status = "failed"
			mv.Error = o.Err.Error()
		} else {
			mv.Status = "ok"
			mv.Makespan = o.Result.Makespan
			mv.Cost = o.Result.Cost
			mv.Energy = o.Result.Energy
		}
		e.Variants = append(e.Variants, mv)
	}
	return e
}
