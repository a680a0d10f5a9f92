package rule

import (
	"context"
	"fmt"
	"time"

	"complyeye/internal/models"

	"go.uber.org/zap"
)

// RuleStore is the injected rule persistence collaborator.
// IncrementTriggerCount must be atomic so that near-simultaneous firings
// of the same rule do not lose updates.
type RuleStore interface {
	GetEnabledRules(ctx context.Context, tenantID string) ([]models.Rule, error)
	GetRule(ctx context.Context, id uint) (*models.Rule, error)
	IncrementTriggerCount(ctx context.Context, ruleID uint, firedAt time.Time) error
}

// FiringSink persists firing records.
type FiringSink interface {
	Save(ctx context.Context, rec *models.FiringRecord) error
	Update(ctx context.Context, rec *models.FiringRecord) error
}

// FiringContext is handed to capability handlers alongside the action
// parameters. Level is non-nil only during escalation re-dispatch.
type FiringContext struct {
	Rule   *models.Rule
	Event  *models.Event
	Record *models.FiringRecord
	Level  *models.EscalationLevel
}

// Handler executes one action type against its external collaborator.
type Handler interface {
	Execute(ctx context.Context, params map[string]any, fc *FiringContext) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, params map[string]any, fc *FiringContext) (string, error)

func (f HandlerFunc) Execute(ctx context.Context, params map[string]any, fc *FiringContext) (string, error) {
	return f(ctx, params, fc)
}

// Dispatcher executes the ordered action list of a fired, unsuppressed
// rule. Every action is attempted regardless of earlier failures, and
// each outcome is recorded independently.
type Dispatcher struct {
	handlers      map[models.ActionType]Handler
	rules         RuleStore
	sink          FiringSink
	log           *zap.Logger
	actionTimeout time.Duration
	now           func() time.Time
}

func NewDispatcher(rules RuleStore, sink FiringSink, actionTimeout time.Duration, log *zap.Logger) *Dispatcher {
	if actionTimeout <= 0 {
		actionTimeout = 30 * time.Second
	}
	return &Dispatcher{
		handlers:      make(map[models.ActionType]Handler),
		rules:         rules,
		sink:          sink,
		log:           log,
		actionTimeout: actionTimeout,
		now:           time.Now,
	}
}

// Register binds a capability handler to an action type, replacing any
// previous binding.
func (d *Dispatcher) Register(t models.ActionType, h Handler) {
	d.handlers[t] = h
}

// Dispatch creates the firing record, executes every action in order,
// and persists the final record. The record is returned even when every
// action failed; only the per-action entries carry the failures. The
// rule's trigger statistics are incremented exactly once per call.
func (d *Dispatcher) Dispatch(ctx context.Context, r *models.Rule, event *models.Event) *models.FiringRecord {
	firedAt := d.now()
	rec := d.newRecord(r, event, firedAt)

	if err := d.sink.Save(ctx, rec); err != nil {
		// Keep executing; the final Update below retries persistence.
		d.log.Error("failed to save firing record",
			zap.Uint("rule_id", r.ID), zap.String("event_id", event.ID), zap.Error(err))
	}

	fc := &FiringContext{Rule: r, Event: event, Record: rec}
	allCompleted := true
	for i := range r.Actions {
		entry := d.executeAction(ctx, &r.Actions[i], fc)
		rec.ActionsExecuted[i] = entry
		if entry.Status != models.ActionStatusCompleted {
			allCompleted = false
		}
	}

	if allCompleted {
		rec.DispatchStatus = models.DispatchStatusCompleted
	} else {
		rec.DispatchStatus = models.DispatchStatusFailed
	}

	if next := nextEscalationAt(r.Escalation, 0, firedAt); next != nil {
		rec.NextEscalationAt = next
	}

	if err := d.sink.Update(ctx, rec); err != nil {
		d.log.Error("failed to persist firing record",
			zap.Uint("rule_id", r.ID), zap.String("event_id", event.ID), zap.Error(err))
	}

	if err := d.rules.IncrementTriggerCount(ctx, r.ID, firedAt); err != nil {
		d.log.Error("failed to increment rule trigger count",
			zap.Uint("rule_id", r.ID), zap.Error(err))
	} else {
		r.TriggerCount++
		r.LastTriggered = &firedAt
	}

	return rec
}

// DispatchEscalation re-invokes the rule's notify and escalate actions
// for a new escalation level. Outcomes are returned for the caller to
// append to the firing's escalation history; the original per-action
// list is left untouched.
func (d *Dispatcher) DispatchEscalation(ctx context.Context, r *models.Rule, rec *models.FiringRecord, lvl *models.EscalationLevel) []models.ActionExecution {
	event := &models.Event{
		ID:        rec.EventID,
		TenantID:  rec.TenantID,
		Source:    rec.EventSource,
		Timestamp: rec.FiredAt,
		Data:      rec.EventData,
	}
	fc := &FiringContext{Rule: r, Event: event, Record: rec, Level: lvl}

	var results []models.ActionExecution
	for i := range r.Actions {
		t := r.Actions[i].Type
		if t != models.ActionNotify && t != models.ActionEscalate {
			continue
		}
		results = append(results, d.executeAction(ctx, &r.Actions[i], fc))
	}
	return results
}

func (d *Dispatcher) executeAction(ctx context.Context, spec *models.ActionSpec, fc *FiringContext) models.ActionExecution {
	executedAt := d.now()
	entry := models.ActionExecution{
		Type:       spec.Type,
		ExecutedAt: &executedAt,
	}

	handler, ok := d.handlers[spec.Type]
	if !ok {
		entry.Status = models.ActionStatusFailed
		entry.Error = fmt.Sprintf("no handler registered for action type %q", spec.Type)
		return entry
	}

	actionCtx, cancel := context.WithTimeout(ctx, d.actionTimeout)
	defer cancel()

	result, err := safeExecute(actionCtx, handler, spec.Parameters, fc)
	if err != nil {
		entry.Status = models.ActionStatusFailed
		entry.Error = err.Error()
		d.log.Warn("action failed",
			zap.String("action", string(spec.Type)),
			zap.Uint("rule_id", fc.Rule.ID),
			zap.String("event_id", fc.Event.ID),
			zap.Error(err))
		return entry
	}

	entry.Status = models.ActionStatusCompleted
	entry.Result = result
	return entry
}

// safeExecute contains handler panics so one misbehaving capability
// cannot abort the remaining actions.
func safeExecute(ctx context.Context, h Handler, params map[string]any, fc *FiringContext) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Execute(ctx, params, fc)
}

func (d *Dispatcher) newRecord(r *models.Rule, event *models.Event, firedAt time.Time) *models.FiringRecord {
	actions := make([]models.ActionExecution, len(r.Actions))
	for i := range r.Actions {
		actions[i] = models.ActionExecution{
			Type:   r.Actions[i].Type,
			Status: models.ActionStatusPending,
		}
	}
	return &models.FiringRecord{
		TenantID:        r.TenantID,
		RuleID:          r.ID,
		RuleName:        r.Name,
		Severity:        r.Severity,
		EventID:         event.ID,
		EventSource:     event.Source,
		EventData:       event.Data,
		FiredAt:         firedAt,
		Status:          models.FiringStatusActive,
		ActionsExecuted: actions,
	}
}

// nextEscalationAt computes when the level after current comes due,
// relative to base (the firing time for level zero, the previous
// escalation time afterwards).
func nextEscalationAt(cfg *models.EscalationConfig, current int, base time.Time) *time.Time {
	next := cfg.NextLevel(current)
	if next == nil {
		return nil
	}
	due := base.Add(time.Duration(next.DelayMinutes) * time.Minute)
	return &due
}
