package rule

import (
	"context"
	"errors"
	"testing"
	"time"

	"complyeye/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func engineRule(id uint, name string, priority int) models.Rule {
	r := models.Rule{
		TenantID: "tenant-a",
		Name:     name,
		Enabled:  true,
		Priority: priority,
		Severity: models.SeverityWarning,
		Triggers: []models.TriggerGroup{{
			Source: models.SourcePoam,
			Conditions: []models.Condition{
				{Metric: "severity", Operator: models.OperatorEquals, Value: "high"},
			},
		}},
		Actions: []models.ActionSpec{{Type: models.ActionNotify}},
	}
	r.ID = id
	return r
}

func newTestEngine(rules *fakeRuleStore, history *fakeHistory, sink *fakeSink) *Engine {
	log := zap.NewNop()
	d := NewDispatcher(rules, sink, time.Second, log)
	d.Register(models.ActionNotify, okHandler("sent"))
	gate := NewSuppressionGate(history, log)
	return NewEngine(rules, gate, d, sink, log)
}

func TestEvaluateMatchingRuleFires(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{engineRule(1, "high severity", 0)}}
	sink := &fakeSink{}
	e := newTestEngine(rules, &fakeHistory{}, sink)

	results, err := e.Evaluate(context.Background(), "tenant-a", poamEvent(map[string]any{"severity": "high"}))

	require.NoError(t, err)
	require.Len(t, results, 1)
	rec := results[0]
	assert.Equal(t, uint(1), rec.RuleID)
	assert.False(t, rec.Suppressed)
	assert.Equal(t, models.FiringStatusActive, rec.Status)
	assert.Equal(t, models.DispatchStatusCompleted, rec.DispatchStatus)
	require.Len(t, rec.ActionsExecuted, 1)
	assert.Equal(t, models.ActionStatusCompleted, rec.ActionsExecuted[0].Status)
	assert.Equal(t, 1, rules.increments[1])
}

func TestEvaluateNoMatchReturnsEmpty(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{engineRule(1, "high severity", 0)}}
	e := newTestEngine(rules, &fakeHistory{}, &fakeSink{})

	results, err := e.Evaluate(context.Background(), "tenant-a", poamEvent(map[string]any{"severity": "low"}))

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, rules.increments)
}

func TestEvaluateDisabledRuleNeverFires(t *testing.T) {
	r := engineRule(1, "disabled", 0)
	r.Enabled = false
	rules := &fakeRuleStore{rules: []models.Rule{r}}
	e := newTestEngine(rules, &fakeHistory{}, &fakeSink{})

	results, err := e.Evaluate(context.Background(), "tenant-a", poamEvent(map[string]any{"severity": "high"}))

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEvaluateOtherTenantRulesInvisible(t *testing.T) {
	r := engineRule(1, "other tenant", 0)
	r.TenantID = "tenant-b"
	rules := &fakeRuleStore{rules: []models.Rule{r}}
	e := newTestEngine(rules, &fakeHistory{}, &fakeSink{})

	results, err := e.Evaluate(context.Background(), "tenant-a", poamEvent(map[string]any{"severity": "high"}))

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEvaluatePriorityOrdering(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{
		engineRule(1, "low priority", 1),
		engineRule(2, "high priority", 10),
		engineRule(3, "mid priority", 5),
	}}
	e := newTestEngine(rules, &fakeHistory{}, &fakeSink{})

	results, err := e.Evaluate(context.Background(), "tenant-a", poamEvent(map[string]any{"severity": "high"}))

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, uint(2), results[0].RuleID)
	assert.Equal(t, uint(3), results[1].RuleID)
	assert.Equal(t, uint(1), results[2].RuleID)
}

func TestEvaluateSuppressedRule(t *testing.T) {
	r := engineRule(1, "noisy", 0)
	r.Suppression = models.SuppressionConfig{Enabled: true, WindowMinutes: 60, MaxFiringsInWindow: 1}
	rules := &fakeRuleStore{rules: []models.Rule{r}}
	sink := &fakeSink{}
	e := newTestEngine(rules, &fakeHistory{count: 1}, sink)

	results, err := e.Evaluate(context.Background(), "tenant-a", poamEvent(map[string]any{"severity": "high"}))

	require.NoError(t, err)
	require.Len(t, results, 1)
	rec := results[0]
	assert.True(t, rec.Suppressed)
	assert.Equal(t, models.DispatchStatusSkipped, rec.DispatchStatus)
	assert.Empty(t, rec.ActionsExecuted)
	assert.Empty(t, rules.increments, "suppressed firings do not count as triggers")
	assert.Len(t, sink.saved, 1, "suppressed firing still recorded for audit")
}

func TestEvaluateRuleStoreFailure(t *testing.T) {
	rules := &fakeRuleStore{listErr: errors.New("connection refused")}
	e := newTestEngine(rules, &fakeHistory{}, &fakeSink{})

	results, err := e.Evaluate(context.Background(), "tenant-a", poamEvent(map[string]any{"severity": "high"}))

	assert.Nil(t, results)
	var collab *CollaboratorError
	require.ErrorAs(t, err, &collab)
	assert.Equal(t, "rule store", collab.Collaborator)
}

func TestEvaluateIsRepeatable(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{engineRule(1, "repeatable", 0)}}
	e := newTestEngine(rules, &fakeHistory{}, &fakeSink{})
	event := poamEvent(map[string]any{"severity": "high"})

	first, err := e.Evaluate(context.Background(), "tenant-a", event)
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), "tenant-a", event)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].RuleID, second[0].RuleID)
	assert.Equal(t, first[0].Suppressed, second[0].Suppressed)
	assert.Equal(t, first[0].DispatchStatus, second[0].DispatchStatus)
	assert.Equal(t, len(first[0].ActionsExecuted), len(second[0].ActionsExecuted))
	assert.Equal(t, 2, rules.increments[1])
}

func TestEvaluateActionFailureDoesNotFailPass(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{engineRule(1, "failing action", 0)}}
	sink := &fakeSink{}
	log := zap.NewNop()
	d := NewDispatcher(rules, sink, time.Second, log)
	d.Register(models.ActionNotify, failHandler("smtp unreachable"))
	e := NewEngine(rules, NewSuppressionGate(&fakeHistory{}, log), d, sink, log)

	results, err := e.Evaluate(context.Background(), "tenant-a", poamEvent(map[string]any{"severity": "high"}))

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.DispatchStatusFailed, results[0].DispatchStatus)
	require.Len(t, results[0].ActionsExecuted, 1)
	assert.Equal(t, "smtp unreachable", results[0].ActionsExecuted[0].Error)
}
