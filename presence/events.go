package presence

import (
	"relloyd/bluepresence/models"
)

// DecideEvents returns the discrete events for one cycle given its transitions and the
// group aggregate captured before and after the update.
// Group events fire only on cycles with at least one transition. anybody_home fires only
// on the edge from nobody present to somebody present.
func DecideEvents(tr models.Transitions, before, after models.GroupAggregate) []models.Event {
	var events []models.Event

	for _, name := range tr.Arrived {
		events = append(events, models.Event{Type: models.EventArrived, Payload: map[string]any{"name": name}})
	}
	for _, name := range tr.Left {
		events = append(events, models.Event{Type: models.EventLeft, Payload: map[string]any{"name": name}})
	}

	if !tr.Any() {
		return events
	}

	if before.PresentCount == 0 && after.PresentCount > 0 && len(tr.Arrived) > 0 {
		events = append(events, groupEvent(models.EventAnybodyHome, after))
	}
	if after.EverybodyHome {
		events = append(events, groupEvent(models.EventEverybodyHome, after))
	}
	if after.NobodyHome {
		events = append(events, groupEvent(models.EventNobodyHome, after))
	}

	return events
}

func groupEvent(typ models.EventType, agg models.GroupAggregate) models.Event {
	return models.Event{
		Type: typ,
		Payload: map[string]any{
			"present_count": agg.PresentCount,
			"total_count":   agg.TotalCount,
			"present_names": agg.PresentNames,
		},
	}
}
