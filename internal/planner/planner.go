// Package planner implements the deadline- and budget-aware list scheduler in
// its two policy variants.
//
// Tasks are placed one at a time in critical-path order. Each placement first
// tries to co-locate the task with the predecessor that ships it the most data,
// then tries an idle or new instance of the cheapest archetype fast enough for
// the task's deadline, and finally falls back to any affordable archetype
// regardless of the deadline. The unspent budget of earlier placements is
// carried forward as surplus.
package planner

import (
	"context"
	"sort"

	"github.com/markphelps/optional"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"esdwb/internal/cloud"
	"esdwb/internal/energy"
	"esdwb/internal/ledger"
	"esdwb/internal/naive"
	"esdwb/internal/rank"
	"esdwb/internal/schedule"
	"esdwb/internal/timing"
	"esdwb/internal/workflow"
)

// Options configures a planning run.
type Options struct {
	Variant   Variant
	Alpha     float64
	Beta      float64
	Bandwidth float64 // Gbit/s

	// Reference is the archetype of the naive schedule deadlines are derived
	// from. Nil selects the catalog's fastest archetype.
	Reference *cloud.VMType

	// Surplus overrides the initial surplus derived from the bounds.
	Surplus optional.Float64

	EnergyRule timing.WindowRule

	Sink   ledger.Sink
	Logger log.FieldLogger
	Scope  tally.Scope
}

// Result is a completed planning run.
type Result struct {
	Variant  Variant
	Bounds   naive.Bounds
	Order    []*workflow.Task
	Schedule *schedule.Schedule
	Model    *timing.Model
	Ledger   []ledger.Row

	InitialSurplus float64
	FinalSurplus   float64

	Makespan      float64 // actual makespan, fixed before energy optimization
	Cost          float64
	PlannedEnergy float64 // before energy optimization
	Energy        float64
	Optimization  energy.Stats
}

// Planner places the tasks of one workflow on instances of one catalog.
type Planner struct {
	wf      *workflow.Workflow
	catalog *cloud.Catalog
	opts    Options
	logger  log.FieldLogger
	metrics *Metrics
	scope   tally.Scope
}

// New returns a Planner for wf on catalog.
func New(wf *workflow.Workflow, catalog *cloud.Catalog, opts Options) *Planner {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	scope := opts.Scope
	if scope == nil {
		scope = tally.NoopScope
	}
	return &Planner{
		wf:      wf,
		catalog: catalog,
		opts:    opts,
		logger: logger.WithFields(log.Fields{
			"workflow": wf.Name(),
			"tasks":    wf.Len(),
			"variant":  opts.Variant.String(),
		}),
		metrics: NewMetrics(scope, opts.Variant),
		scope:   scope,
	}
}

// run is the mutable state of one Plan call.
type run struct {
	*Planner
	bounds  naive.Bounds
	pool    *cloud.Pool
	sched   *schedule.Schedule
	model   *timing.Model
	surplus float64
	sink    ledger.Sink
}

// Plan places every task, then lowers operating points where slack allows.
//
// A task no archetype can afford aborts the run with *UnplaceableTaskError.
// ctx is checked between placements.
func (p *Planner) Plan(ctx context.Context) (*Result, error) {
	bounds, err := naive.ComputeBounds(p.wf, p.catalog, p.opts.Bandwidth, p.opts.Alpha, p.opts.Beta, p.opts.Reference)
	if err != nil {
		return nil, errors.Wrap(err, "computing bounds")
	}
	order := rank.Order(bounds.Reference, p.catalog)

	pool := cloud.NewPool()
	sched := schedule.New(pool)
	recorder := ledger.NewRecorder()
	r := &run{
		Planner: p,
		bounds:  bounds,
		pool:    pool,
		sched:   sched,
		model:   timing.New(p.wf, sched, p.opts.Bandwidth),
		sink:    ledger.Tee{recorder, p.opts.Sink},
	}
	if p.opts.Variant == ESDWB {
		r.surplus = bounds.InitialSurplus
	}
	r.surplus = p.opts.Surplus.OrElse(r.surplus)
	initial := r.surplus

	p.logger.WithFields(log.Fields{
		"deadline": bounds.Deadline,
		"budget":   bounds.Budget,
		"min_cost": bounds.MinCost,
		"max_cost": bounds.MaxCost,
		"surplus":  initial,
	}).Debug("planning started")

	for _, t := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.place(t); err != nil {
			p.metrics.Unplaceable.Inc(1)
			p.logger.WithError(err).WithField("task", t.ID).Error("planning aborted")
			return nil, err
		}
	}

	res := &Result{
		Variant:        p.opts.Variant,
		Bounds:         bounds,
		Order:          order,
		Schedule:       sched,
		Model:          r.model,
		Ledger:         recorder.Snapshot(),
		InitialSurplus: initial,
		FinalSurplus:   r.surplus,
		Makespan:       r.model.ActualMakespan(),
		Cost:           r.model.TotalCost(),
		PlannedEnergy:  r.model.TotalEnergy(),
	}

	opt := energy.New(r.model, energy.Options{Rule: p.opts.EnergyRule, Logger: p.logger, Scope: p.scope})
	stats, err := opt.Optimize(ctx, res.Makespan)
	if err != nil {
		return nil, errors.Wrap(err, "energy optimization")
	}
	res.Optimization = stats
	res.Energy = stats.EnergyAfter

	p.metrics.Makespan.Update(res.Makespan)
	p.metrics.Cost.Update(res.Cost)
	p.metrics.Energy.Update(res.Energy)
	p.metrics.Surplus.Update(res.FinalSurplus)
	p.logger.WithFields(log.Fields{
		"makespan":   res.Makespan,
		"cost":       res.Cost,
		"energy":     res.Energy,
		"vms":        pool.Len(),
		"downscaled": stats.Downscaled,
	}).Info("planning finished")
	return res, nil
}

func (r *run) place(t *workflow.Task) error {
	minCost := timing.MinimumCost(t, r.catalog)
	maxCost := timing.MaximumCost(t, r.catalog)
	budget := minCost + r.surplus
	if r.opts.Variant == ModifiedESDWB {
		budget = minCost + r.opts.Beta*(maxCost-minCost)
	}
	deadline := r.bounds.Reference.Deadline(t, r.opts.Alpha, r.bounds.Makespan)

	vm, tier, from, err := r.reuse(t, deadline, budget)
	if err != nil {
		return err
	}
	if vm == nil {
		vm, tier, err = r.fresh(t, deadline, budget)
		if err != nil {
			return err
		}
	}
	if vm == nil {
		vm, tier, err = r.fallback(t, budget, minCost)
		if err != nil {
			return err
		}
	}

	cost := timing.Cost(t, vm)
	before := r.surplus
	if r.opts.Variant == ModifiedESDWB {
		r.surplus = budget - cost
	} else {
		r.surplus -= cost - minCost
	}
	r.metrics.Placed[tier].Inc(1)

	row := ledger.Row{
		TaskID:     t.ID,
		Surplus:    before,
		Budget:     budget,
		MinCost:    minCost,
		MaxCost:    maxCost,
		VMID:       vm.ID(),
		Cost:       cost,
		Update:     r.surplus - before,
		Tier:       tier,
		ReusedFrom: from,
	}
	ledger.SafeRecord(r.sink, row)

	r.logger.WithFields(log.Fields{
		"task":     t.ID,
		"vm":       vm.ID(),
		"type":     vm.Type().ID,
		"tier":     tier,
		"deadline": deadline,
		"aft":      r.model.AFT(t),
		"budget":   budget,
		"cost":     cost,
		"surplus":  r.surplus,
	}).Debug("task placed")
	return nil
}

// reuse tries the VMs of t's predecessors, heaviest data producer first, and
// keeps the first that meets both the deadline and the budget. A VM hosting
// several predecessors is tried once.
func (r *run) reuse(t *workflow.Task, deadline, budget float64) (*cloud.VM, ledger.Tier, optional.String, error) {
	tried := make(map[int]bool, len(t.Predecessors()))
	for _, p := range reuseCandidates(t) {
		vm := r.sched.MustVM(p)
		if tried[vm.ID()] {
			continue
		}
		tried[vm.ID()] = true

		if err := r.sched.Assign(t, vm); err != nil {
			return nil, "", optional.String{}, err
		}
		r.metrics.ReuseAttempts.Inc(1)
		if r.model.AFT(t) <= deadline && timing.Cost(t, vm) <= budget {
			return vm, ledger.TierReuse, optional.NewString(p.ID), nil
		}
		r.metrics.ReuseRejected.Inc(1)
		if err := r.sched.Dismiss(t, vm); err != nil {
			return nil, "", optional.String{}, err
		}
	}
	return nil, "", optional.String{}, nil
}

// reuseCandidates orders t's predecessors by the data they ship to t,
// descending. Equal volumes keep edge order.
func reuseCandidates(t *workflow.Task) []*workflow.Task {
	preds := append([]*workflow.Task(nil), t.Predecessors()...)
	sort.SliceStable(preds, func(i, j int) bool {
		return t.TransferredData(preds[i].ID) > t.TransferredData(preds[j].ID)
	})
	return preds
}

// fresh tries archetypes fast enough for the deadline, in the variant's
// preferred order, and places t on an idle or new instance of the first one
// that fits the budget.
func (r *run) fresh(t *workflow.Task, deadline, budget float64) (*cloud.VM, ledger.Tier, error) {
	speed := r.model.MinSpeedForDeadline(t, deadline)
	var candidates []*cloud.VMType
	for _, typ := range r.catalog.Types() {
		if typ.MaxSpeed() >= speed {
			candidates = append(candidates, typ)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if r.opts.Variant == ModifiedESDWB {
			return candidates[i].MaxSpeed() > candidates[j].MaxSpeed()
		}
		return candidates[i].MaxSpeed() < candidates[j].MaxSpeed()
	})

	for _, typ := range candidates {
		if timing.CostOnType(t, typ) > budget {
			continue
		}
		vm, err := r.obtain(t, typ)
		return vm, ledger.TierFresh, err
	}
	return nil, "", nil
}

// fallback places t on the affordable archetype with the extreme top speed,
// ignoring the deadline: the fastest for ESDWB, the slowest for the modified
// variant. First in catalog order wins ties.
//
// Affordability uses the unbilled cost, so the billed cost of the chosen
// instance may exceed budget by less than one second of its price.
func (r *run) fallback(t *workflow.Task, budget, minCost float64) (*cloud.VM, ledger.Tier, error) {
	var best *cloud.VMType
	for _, typ := range r.catalog.Types() {
		if timing.UnbilledCostOnType(t, typ) > budget {
			continue
		}
		switch {
		case best == nil:
			best = typ
		case r.opts.Variant == ModifiedESDWB && typ.MaxSpeed() < best.MaxSpeed():
			best = typ
		case r.opts.Variant == ESDWB && typ.MaxSpeed() > best.MaxSpeed():
			best = typ
		}
	}
	if best == nil {
		return nil, "", &UnplaceableTaskError{Variant: r.opts.Variant, TaskID: t.ID, Budget: budget, MinCost: minCost}
	}
	vm, err := r.obtain(t, best)
	return vm, ledger.TierFallback, err
}

// obtain assigns t to an idle instance of typ, launching one if none is idle.
// An instance is idle when every task on it finishes strictly before t could start.
func (r *run) obtain(t *workflow.Task, typ *cloud.VMType) (*cloud.VM, error) {
	start := r.model.AST(t)
	vm, ok := r.pool.FindIdle(typ, func(vm *cloud.VM) bool {
		q := r.sched.Tasks(vm)
		if len(q) == 0 {
			return false
		}
		for _, queued := range q {
			if r.model.AFT(queued) >= start {
				return false
			}
		}
		return true
	})
	if !ok {
		vm = r.pool.Launch(typ)
		r.metrics.Launched.Inc(1)
	}
	if err := r.sched.Assign(t, vm); err != nil {
		return nil, err
	}
	return vm, nil
}
