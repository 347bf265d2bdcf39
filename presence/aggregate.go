package presence

import (
	"relloyd/bluepresence/models"
)

// Aggregate derives the group summary from a snapshot. PresentNames follows registry order.
func Aggregate(registry models.Registry, snapshot map[string]bool) models.GroupAggregate {
	agg := models.GroupAggregate{
		TotalCount:   len(registry),
		PresentNames: []string{},
	}
	for _, dev := range registry {
		if snapshot[dev.Name] {
			agg.PresentCount++
			agg.PresentNames = append(agg.PresentNames, dev.Name)
		}
	}
	agg.EverybodyHome = agg.TotalCount > 0 && agg.PresentCount == agg.TotalCount
	agg.NobodyHome = agg.PresentCount == 0
	agg.AnybodyHome = agg.PresentCount > 0
	return agg
}

// Aggregate summarises the tracker's current state.
func (t *Tracker) Aggregate() models.GroupAggregate {
	return Aggregate(t.registry, t.Snapshot())
}
