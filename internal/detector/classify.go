package detector

import "strings"

// Cause is one reason a reading was flagged. A reading can accumulate more
// than one cause in a single pass.
type Cause string

const (
	CauseThresholdExceeded Cause = "threshold_exceeded"
	CauseHighDeviation     Cause = "high_deviation"
	CauseLowDeviation      Cause = "low_deviation"
)

// KindNone is the wire label for a clean reading.
const KindNone = "none"

// kindSeparator joins simultaneous causes in the flattened wire label.
const kindSeparator = " + "

// Result is the structured classification outcome. Causes keeps the firing
// order: threshold first, then deviation.
type Result struct {
	IsAnomaly bool
	Causes    []Cause
}

// Kind flattens the causes into the wire label. Structured causes stay the
// source of truth; the string exists only for output and report keys.
func (r Result) Kind() string {
	if len(r.Causes) == 0 {
		return KindNone
	}
	parts := make([]string, len(r.Causes))
	for i, c := range r.Causes {
		parts[i] = string(c)
	}
	return strings.Join(parts, kindSeparator)
}

// Classify evaluates one reading value against both criteria independently.
// stats may be nil when no group statistics are available. The statistical
// band is skipped when the spread is zero.
func Classify(value float64, equipmentType string, stats *GroupStats, cfg Config) Result {
	var res Result

	if limit, ok := cfg.Thresholds[equipmentType]; ok && value > limit {
		res.IsAnomaly = true
		res.Causes = append(res.Causes, CauseThresholdExceeded)
	}

	if stats != nil && stats.Stdev > 0 {
		upper := stats.Mean + cfg.SigmaMultiplier*stats.Stdev
		lower := stats.Mean - cfg.SigmaMultiplier*stats.Stdev
		switch {
		case value > upper:
			res.IsAnomaly = true
			res.Causes = append(res.Causes, CauseHighDeviation)
		case value < lower:
			res.IsAnomaly = true
			res.Causes = append(res.Causes, CauseLowDeviation)
		}
	}

	return res
}
