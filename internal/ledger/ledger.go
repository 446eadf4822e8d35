// Package ledger records the budget bookkeeping of a planning run, one row
// per placed task.
package ledger

import (
	"sync"

	"github.com/markphelps/optional"
)

// Tier identifies which planner step placed a task.
//
// The string values appear in ledger CSV files; do not rename.
type Tier string

const (
	TierReuse    Tier = "reuse"
	TierFresh    Tier = "fresh"
	TierFallback Tier = "fallback"
)

// Row is the ledger entry of one placed task.
type Row struct {
	TaskID  string
	Surplus float64 // surplus before the task was placed
	Budget  float64
	MinCost float64
	MaxCost float64
	VMID    int
	Cost    float64
	Update  float64 // surplus after minus surplus before
	Tier    Tier

	// ReusedFrom is the predecessor whose VM was reused, when Tier is TierReuse.
	ReusedFrom optional.String
}

// Sink receives ledger rows as the planner emits them.
//
// Record must not panic or block; the planner treats it as a no-op.
type Sink interface {
	Record(row Row)
}

// NopSink discards all rows.
type NopSink struct{}

func (NopSink) Record(Row) {}

// SafeRecord records a row and swallows panics raised by a buggy sink.
func SafeRecord(s Sink, row Row) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(row)
}

// Recorder is a concurrency-safe in-memory sink.
type Recorder struct {
	mu   sync.Mutex
	rows []Row
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(row Row) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the recorded rows.
func (r *Recorder) Snapshot() []Row {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Row, len(r.rows))
	copy(out, r.rows)
	return out
}

// Tee fans every row out to several sinks.
type Tee []Sink

func (t Tee) Record(row Row) {
	for _, s := range t {
		SafeRecord(s, row)
	}
}
