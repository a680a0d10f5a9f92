package rule

import "complyeye/internal/models"

// Matches decides whether a rule fires for an event. Trigger groups are
// OR-combined; the conditions inside a group are AND-combined. A group
// participates only when its source tag equals the event source or is
// the "all" wildcard. A rule with no trigger groups never matches.
func Matches(r *models.Rule, event *models.Event) bool {
	if len(r.Triggers) == 0 {
		return false
	}

	for i := range r.Triggers {
		group := &r.Triggers[i]
		if group.Source != event.Source && group.Source != models.SourceAll {
			continue
		}
		if groupMatches(group, event) {
			return true
		}
	}
	return false
}

func groupMatches(group *models.TriggerGroup, event *models.Event) bool {
	for _, cond := range group.Conditions {
		value := Extract(event.Data, cond.Metric)
		if !EvaluateOperator(value, cond.Operator, cond.Value) {
			return false
		}
	}
	return true
}
