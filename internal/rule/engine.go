package rule

import (
	"context"
	"sort"
	"time"

	"complyeye/internal/models"

	"go.uber.org/zap"
)

// Engine is the single entry point shared by the workflow-automation,
// alerting, and notification-routing call sites. All collaborators are
// injected at construction; the engine holds no mutable state across
// evaluation passes.
type Engine struct {
	rules      RuleStore
	gate       *SuppressionGate
	dispatcher *Dispatcher
	sink       FiringSink
	log        *zap.Logger
	now        func() time.Time
}

func NewEngine(rules RuleStore, gate *SuppressionGate, dispatcher *Dispatcher, sink FiringSink, log *zap.Logger) *Engine {
	return &Engine{
		rules:      rules,
		gate:       gate,
		dispatcher: dispatcher,
		sink:       sink,
		log:        log,
		now:        time.Now,
	}
}

// Evaluate runs one event through the tenant's enabled rules in
// descending priority order. Each rule's match, suppression check, and
// dispatch are independent of every other rule; the only shared state is
// the returned result list. A rule-store failure aborts the pass for
// this tenant and is surfaced as a CollaboratorError; everything else is
// contained per rule or per action.
func (e *Engine) Evaluate(ctx context.Context, tenantID string, event *models.Event) ([]*models.FiringRecord, error) {
	rules, err := e.rules.GetEnabledRules(ctx, tenantID)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "rule store", Err: err}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	results := make([]*models.FiringRecord, 0)
	for i := range rules {
		r := &rules[i]
		if !r.Enabled {
			continue
		}
		if !Matches(r, event) {
			continue
		}

		if e.gate.IsSuppressed(ctx, r) {
			rec := e.suppressedRecord(r, event)
			if err := e.sink.Save(ctx, rec); err != nil {
				e.log.Error("failed to save suppressed firing record",
					zap.Uint("rule_id", r.ID), zap.String("event_id", event.ID), zap.Error(err))
			}
			e.log.Info("rule matched but suppressed",
				zap.Uint("rule_id", r.ID),
				zap.String("rule_name", r.Name),
				zap.String("event_id", event.ID))
			results = append(results, rec)
			continue
		}

		rec := e.dispatcher.Dispatch(ctx, r, event)
		e.log.Info("rule fired",
			zap.Uint("rule_id", r.ID),
			zap.String("rule_name", r.Name),
			zap.String("event_id", event.ID),
			zap.String("dispatch_status", string(rec.DispatchStatus)))
		results = append(results, rec)
	}

	return results, nil
}

// suppressedRecord captures a withheld firing for audit. No actions are
// attempted and the record never counts toward the suppression window.
func (e *Engine) suppressedRecord(r *models.Rule, event *models.Event) *models.FiringRecord {
	return &models.FiringRecord{
		TenantID:        r.TenantID,
		RuleID:          r.ID,
		RuleName:        r.Name,
		Severity:        r.Severity,
		EventID:         event.ID,
		EventSource:     event.Source,
		EventData:       event.Data,
		FiredAt:         e.now(),
		Suppressed:      true,
		Status:          models.FiringStatusActive,
		DispatchStatus:  models.DispatchStatusSkipped,
		ActionsExecuted: []models.ActionExecution{},
	}
}
