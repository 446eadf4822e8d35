package planner

import (
	"github.com/uber-go/tally/v4"

	"esdwb/internal/ledger"
)

// Metrics is the planner's tally instrumentation.
type Metrics struct {
	Placed        map[ledger.Tier]tally.Counter
	Launched      tally.Counter
	ReuseAttempts tally.Counter
	ReuseRejected tally.Counter
	Unplaceable   tally.Counter

	Makespan tally.Gauge
	Cost     tally.Gauge
	Energy   tally.Gauge
	Surplus  tally.Gauge
}

// NewMetrics returns Metrics under the "planner" sub-scope, tagged by variant.
func NewMetrics(scope tally.Scope, v Variant) *Metrics {
	s := scope.SubScope("planner").Tagged(map[string]string{"variant": v.String()})
	placed := make(map[ledger.Tier]tally.Counter, 3)
	for _, tier := range []ledger.Tier{ledger.TierReuse, ledger.TierFresh, ledger.TierFallback} {
		placed[tier] = s.Tagged(map[string]string{"tier": string(tier)}).Counter("placed")
	}
	return &Metrics{
		Placed:        placed,
		Launched:      s.Counter("vm_launched"),
		ReuseAttempts: s.Counter("reuse_attempts"),
		ReuseRejected: s.Counter("reuse_rejected"),
		Unplaceable:   s.Counter("unplaceable"),
		Makespan:      s.Gauge("makespan"),
		Cost:          s.Gauge("cost"),
		Energy:        s.Gauge("energy"),
		Surplus:       s.Gauge("surplus"),
	}
}
