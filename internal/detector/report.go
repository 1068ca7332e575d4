package detector

import "github.com/khellaf-bel/energy-sentinel/internal/models"

// Report summarizes a classified batch. The three maps count anomalous
// readings only; clean readings contribute solely to TotalCount.
type Report struct {
	TotalCount   int            `json:"total_count"`
	AnomalyCount int            `json:"anomaly_count"`
	Percentage   float64        `json:"percentage"`
	ByType       map[string]int `json:"by_type"`
	BySensor     map[string]int `json:"by_sensor"`
	ByKind       map[string]int `json:"by_kind"`
}

// BuildReport aggregates an already-classified batch. Pure: the input is
// not mutated. An empty batch yields zero counts, 0.0 percentage and empty
// maps rather than an error.
func BuildReport(classified []ClassifiedReading) Report {
	rep := Report{
		TotalCount: len(classified),
		ByType:     map[string]int{},
		BySensor:   map[string]int{},
		ByKind:     map[string]int{},
	}

	for _, c := range classified {
		if !c.Result.IsAnomaly {
			continue
		}
		rep.AnomalyCount++
		rep.ByType[models.NormalizeType(c.Reading.EquipmentType)]++
		sensor := c.Reading.SensorID
		if sensor == "" {
			sensor = models.Unknown
		}
		rep.BySensor[sensor]++
		rep.ByKind[c.Result.Kind()]++
	}

	if rep.TotalCount > 0 {
		rep.Percentage = round2(float64(rep.AnomalyCount) / float64(rep.TotalCount) * 100)
	}
	return rep
}
