package detector

import (
	"fmt"
	"math"
)

// GroupStats describes one equipment group within the batch being analyzed.
// Mean and Stdev are rounded to two decimals; Min and Max keep raw precision.
type GroupStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Stdev float64 `json:"stdev"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// EmptyInputError is returned when statistics are requested over zero
// values. The engine never triggers it (groups are non-empty by
// construction) but direct callers must get a real error instead of zeroed
// statistics.
type EmptyInputError struct {
	EquipmentType string
	Count         int
}

func (e *EmptyInputError) Error() string {
	if e.EquipmentType == "" {
		return fmt.Sprintf("statistics require at least one value, got %d", e.Count)
	}
	return fmt.Sprintf("statistics for %q require at least one value, got %d", e.EquipmentType, e.Count)
}

// ComputeStats computes the per-group descriptive statistics. With a single
// value the spread is zero by definition. With two or more, Stdev uses the
// sample formula (n-1 divisor). equipmentType is only used for diagnostics.
func ComputeStats(equipmentType string, values []float64) (GroupStats, error) {
	if len(values) == 0 {
		return GroupStats{}, &EmptyInputError{EquipmentType: equipmentType, Count: 0}
	}
	if len(values) == 1 {
		v := values[0]
		return GroupStats{Count: 1, Mean: v, Stdev: 0, Min: v, Max: v}, nil
	}

	minV, maxV := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(len(values)-1))

	return GroupStats{
		Count: len(values),
		Mean:  round2(mean),
		Stdev: round2(stdev),
		Min:   minV,
		Max:   maxV,
	}, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
