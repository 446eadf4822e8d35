// Package energy lowers VM operating points after placement wherever a task
// has slack before its extended finish time.
//
// The optimizer mutates shared VM state: a VM's point changes the execution
// time of every task queued on it. It must only run on a final schedule.
package energy

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"esdwb/internal/timing"
)

// epsilon absorbs float noise when comparing finish times.
const epsilon = 1e-9

// Options configures an Optimizer.
type Options struct {
	Rule   timing.WindowRule
	Logger log.FieldLogger
	Scope  tally.Scope
}

// Stats summarizes one Optimize call.
type Stats struct {
	Passes       int
	Downscaled   int // kept operating-point changes
	Reverted     int // trial changes undone because they delayed the workflow
	EnergyBefore float64
	EnergyAfter  float64
}

// Optimizer down-scales the VMs of one schedule.
type Optimizer struct {
	model   *timing.Model
	rule    timing.WindowRule
	logger  log.FieldLogger
	metrics *Metrics
}

// New returns an Optimizer over m.
func New(m *timing.Model, opts Options) *Optimizer {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	scope := opts.Scope
	if scope == nil {
		scope = tally.NoopScope
	}
	return &Optimizer{model: m, rule: opts.Rule, logger: logger, metrics: NewMetrics(scope)}
}

// Optimize repeats passes over the tasks, in workflow input order, until a
// pass changes nothing. makespan is the actual makespan of the schedule as
// placed; no change is kept that finishes the workflow later.
//
// For each task with slack, the slowest point of its VM's archetype that still
// fits the possible extended window is selected, if it is slower than the
// current one. Speeds are never raised.
func (o *Optimizer) Optimize(ctx context.Context, makespan float64) (Stats, error) {
	m := o.model
	s := m.Schedule()
	pool := s.Pool()
	stats := Stats{EnergyBefore: m.TotalEnergy()}

	for changed := true; changed; {
		changed = false
		stats.Passes++
		for _, t := range m.Workflow().Tasks() {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			exft := m.ExtendedFinishTime(t, makespan)
			if exft <= m.AFT(t)+epsilon {
				continue
			}
			speed := m.MinSpeedWithinWindow(t, m.PossibleExtendedFinishTime(t, makespan, o.rule))
			vm := s.MustVM(t)
			idx, ok := vm.Type().SlowestPointAtLeast(speed)
			if !ok || idx <= vm.PointIndex() {
				continue
			}

			prev := vm.PointIndex()
			if err := pool.Scale(vm, idx); err != nil {
				return stats, err
			}
			if m.AFT(t) > exft+epsilon || m.ActualMakespan() > makespan+epsilon {
				if err := pool.Scale(vm, prev); err != nil {
					return stats, err
				}
				stats.Reverted++
				o.metrics.Reverted.Inc(1)
				continue
			}

			o.logger.WithFields(log.Fields{
				"task":  t.ID,
				"vm":    vm.ID(),
				"from":  prev,
				"to":    idx,
				"speed": vm.Speed(),
			}).Debug("operating point lowered")
			stats.Downscaled++
			o.metrics.Downscaled.Inc(1)
			changed = true
		}
	}

	stats.EnergyAfter = m.TotalEnergy()
	o.metrics.Passes.Inc(int64(stats.Passes))
	o.metrics.Energy.Update(stats.EnergyAfter)
	return stats, nil
}
