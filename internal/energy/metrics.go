package energy

import "github.com/uber-go/tally/v4"

// Metrics is the optimizer's tally instrumentation.
type Metrics struct {
	Passes     tally.Counter
	Downscaled tally.Counter
	Reverted   tally.Counter
	Energy     tally.Gauge
}

// NewMetrics returns Metrics registered under the "energy" sub-scope.
func NewMetrics(scope tally.Scope) *Metrics {
	s := scope.SubScope("energy")
	return &Metrics{
		Passes:     s.Counter("passes"),
		Downscaled: s.Counter("downscaled"),
		Reverted:   s.Counter("reverted"),
		Energy:     s.Gauge("total"),
	}
}
