// Package cloud models the resource catalog: VM archetypes with their discrete
// operating points, and the pool of instances launched from them during one run.
package cloud

import (
	"fmt"
	"sort"
)

const (
	// MIPSPerGHz converts a clock frequency into a processing speed.
	MIPSPerGHz = 1.0e3

	// PowerCoefficient is the K in P = K * V^2 * f.
	PowerCoefficient = 1.0

	secondsPerHour = 3600.0
)

// OperatingPoint is one (voltage, frequency, speed) triple a VM can run at.
type OperatingPoint struct {
	Voltage   float64 // V
	Frequency float64 // GHz
	Speed     float64 // MIPS
}

func (p OperatingPoint) String() string {
	return fmt.Sprintf("%.2fV/%.2fGHz/%.0fMIPS", p.Voltage, p.Frequency, p.Speed)
}

// VMType is an immutable machine archetype.
//
// Points are ordered from the highest to the lowest processing speed, so index 0
// is always the fastest point.
type VMType struct {
	ID            int
	CostPerSecond float64
	points        []OperatingPoint
}

// NewVMType builds an archetype from parallel voltage and frequency lists.
// Speeds are derived as frequency * MIPSPerGHz.
func NewVMType(id int, costPerHour float64, voltages, frequencies []float64) (*VMType, error) {
	if len(voltages) == 0 {
		return nil, invalidf("vm type %d: no operating points", id)
	}
	if len(voltages) != len(frequencies) {
		return nil, invalidf("vm type %d: %d voltage levels but %d frequencies", id, len(voltages), len(frequencies))
	}
	if costPerHour < 0 {
		return nil, invalidf("vm type %d: negative cost %v", id, costPerHour)
	}
	points := make([]OperatingPoint, len(voltages))
	for i := range voltages {
		if voltages[i] <= 0 || frequencies[i] <= 0 {
			return nil, invalidf("vm type %d: operating point %d must be positive", id, i)
		}
		points[i] = OperatingPoint{
			Voltage:   voltages[i],
			Frequency: frequencies[i],
			Speed:     frequencies[i] * MIPSPerGHz,
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Speed > points[j].Speed })
	return &VMType{ID: id, CostPerSecond: costPerHour / secondsPerHour, points: points}, nil
}

// Points returns a copy of the operating points, fastest first.
func (t *VMType) Points() []OperatingPoint {
	out := make([]OperatingPoint, len(t.points))
	copy(out, t.points)
	return out
}

// Point returns the operating point at index i.
func (t *VMType) Point(i int) OperatingPoint { return t.points[i] }

// MaxSpeed returns the speed of the fastest operating point.
func (t *VMType) MaxSpeed() float64 { return t.points[0].Speed }

// CostSpeedRatio is the cost per second divided by the top speed.
func (t *VMType) CostSpeedRatio() float64 { return t.CostPerSecond / t.MaxSpeed() }

// SlowestPointAtLeast returns the index of the slowest point with speed >= minSpeed.
func (t *VMType) SlowestPointAtLeast(minSpeed float64) (int, bool) {
	for i := len(t.points) - 1; i >= 0; i-- {
		if t.points[i].Speed >= minSpeed {
			return i, true
		}
	}
	return 0, false
}

func (t *VMType) String() string {
	return fmt.Sprintf("VMType{id=%d, costPerSecond=%.3e, max=%s}", t.ID, t.CostPerSecond, t.points[0])
}
