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

func dispatchRule() *models.Rule {
	r := &models.Rule{
		TenantID: "tenant-a",
		Name:     "notify on critical",
		Enabled:  true,
		Severity: models.SeverityCritical,
		Actions: []models.ActionSpec{
			{Type: models.ActionNotify},
			{Type: models.ActionAssign, Parameters: map[string]any{"assignee": "isso"}},
			{Type: models.ActionAddComment, Parameters: map[string]any{"comment": "auto"}},
		},
	}
	r.ID = 7
	return r
}

func dispatchEvent() *models.Event {
	return &models.Event{
		ID:       "evt-9",
		TenantID: "tenant-a",
		Source:   models.SourcePoam,
		Data:     map[string]any{"id": "POAM-1", "severity": "critical"},
	}
}

func okHandler(result string) Handler {
	return HandlerFunc(func(context.Context, map[string]any, *FiringContext) (string, error) {
		return result, nil
	})
}

func failHandler(msg string) Handler {
	return HandlerFunc(func(context.Context, map[string]any, *FiringContext) (string, error) {
		return "", errors.New(msg)
	})
}

func TestDispatchAllActionsSucceed(t *testing.T) {
	rules := &fakeRuleStore{}
	sink := &fakeSink{}
	d := NewDispatcher(rules, sink, time.Second, zap.NewNop())
	d.Register(models.ActionNotify, okHandler("sent"))
	d.Register(models.ActionAssign, okHandler("assigned"))
	d.Register(models.ActionAddComment, okHandler("commented"))

	r := dispatchRule()
	rec := d.Dispatch(context.Background(), r, dispatchEvent())

	require.Len(t, rec.ActionsExecuted, 3)
	assert.Equal(t, models.DispatchStatusCompleted, rec.DispatchStatus)
	for i, entry := range rec.ActionsExecuted {
		assert.Equal(t, r.Actions[i].Type, entry.Type, "entries keep action order")
		assert.Equal(t, models.ActionStatusCompleted, entry.Status)
		assert.NotNil(t, entry.ExecutedAt)
	}
	assert.Equal(t, "sent", rec.ActionsExecuted[0].Result)

	assert.Len(t, sink.saved, 1)
	assert.Len(t, sink.updated, 1)
	assert.Equal(t, 1, rules.increments[7])
	assert.Equal(t, int64(1), r.TriggerCount)
	assert.NotNil(t, r.LastTriggered)
}

func TestDispatchActionFailureDoesNotBlockSiblings(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(&fakeRuleStore{}, sink, time.Second, zap.NewNop())
	d.Register(models.ActionNotify, okHandler("sent"))
	d.Register(models.ActionAssign, failHandler("assignee not found"))
	d.Register(models.ActionAddComment, okHandler("commented"))

	rec := d.Dispatch(context.Background(), dispatchRule(), dispatchEvent())

	require.Len(t, rec.ActionsExecuted, 3)
	assert.Equal(t, models.ActionStatusCompleted, rec.ActionsExecuted[0].Status)
	assert.Equal(t, models.ActionStatusFailed, rec.ActionsExecuted[1].Status)
	assert.Equal(t, "assignee not found", rec.ActionsExecuted[1].Error)
	assert.Equal(t, models.ActionStatusCompleted, rec.ActionsExecuted[2].Status)
	assert.Equal(t, models.DispatchStatusFailed, rec.DispatchStatus)
}

func TestDispatchHandlerPanicIsContained(t *testing.T) {
	d := NewDispatcher(&fakeRuleStore{}, &fakeSink{}, time.Second, zap.NewNop())
	d.Register(models.ActionNotify, HandlerFunc(func(context.Context, map[string]any, *FiringContext) (string, error) {
		panic("boom")
	}))
	d.Register(models.ActionAssign, okHandler("assigned"))
	d.Register(models.ActionAddComment, okHandler("commented"))

	rec := d.Dispatch(context.Background(), dispatchRule(), dispatchEvent())

	require.Len(t, rec.ActionsExecuted, 3)
	assert.Equal(t, models.ActionStatusFailed, rec.ActionsExecuted[0].Status)
	assert.Contains(t, rec.ActionsExecuted[0].Error, "handler panic")
	assert.Equal(t, models.ActionStatusCompleted, rec.ActionsExecuted[1].Status)
	assert.Equal(t, models.ActionStatusCompleted, rec.ActionsExecuted[2].Status)
}

func TestDispatchMissingHandler(t *testing.T) {
	d := NewDispatcher(&fakeRuleStore{}, &fakeSink{}, time.Second, zap.NewNop())
	d.Register(models.ActionNotify, okHandler("sent"))
	d.Register(models.ActionAddComment, okHandler("commented"))

	rec := d.Dispatch(context.Background(), dispatchRule(), dispatchEvent())

	require.Len(t, rec.ActionsExecuted, 3)
	assert.Equal(t, models.ActionStatusFailed, rec.ActionsExecuted[1].Status)
	assert.Contains(t, rec.ActionsExecuted[1].Error, "no handler registered")
	assert.Equal(t, models.DispatchStatusFailed, rec.DispatchStatus)
}

func TestDispatchTimeoutEnforced(t *testing.T) {
	d := NewDispatcher(&fakeRuleStore{}, &fakeSink{}, 20*time.Millisecond, zap.NewNop())
	d.Register(models.ActionNotify, HandlerFunc(func(ctx context.Context, _ map[string]any, _ *FiringContext) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	}))

	r := dispatchRule()
	r.Actions = r.Actions[:1]

	start := time.Now()
	rec := d.Dispatch(context.Background(), r, dispatchEvent())
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, rec.ActionsExecuted, 1)
	assert.Equal(t, models.ActionStatusFailed, rec.ActionsExecuted[0].Status)
}

func TestDispatchSetsInitialEscalation(t *testing.T) {
	d := NewDispatcher(&fakeRuleStore{}, &fakeSink{}, time.Second, zap.NewNop())
	d.Register(models.ActionNotify, okHandler("sent"))

	r := dispatchRule()
	r.Actions = r.Actions[:1]
	r.Escalation = &models.EscalationConfig{
		Enabled: true,
		Levels: []models.EscalationLevel{
			{Level: 1, DelayMinutes: 30, Recipients: []string{"isso"}},
			{Level: 2, DelayMinutes: 60, Recipients: []string{"issm"}},
		},
	}

	rec := d.Dispatch(context.Background(), r, dispatchEvent())

	require.NotNil(t, rec.NextEscalationAt)
	assert.WithinDuration(t, rec.FiredAt.Add(30*time.Minute), *rec.NextEscalationAt, time.Second)
	assert.Equal(t, 0, rec.EscalationLevel)
}

func TestDispatchEscalationOnlyReinvokesNotifyActions(t *testing.T) {
	var invoked []models.ActionType
	record := func(t models.ActionType) Handler {
		return HandlerFunc(func(context.Context, map[string]any, *FiringContext) (string, error) {
			invoked = append(invoked, t)
			return "ok", nil
		})
	}

	d := NewDispatcher(&fakeRuleStore{}, &fakeSink{}, time.Second, zap.NewNop())
	d.Register(models.ActionNotify, record(models.ActionNotify))
	d.Register(models.ActionAssign, record(models.ActionAssign))
	d.Register(models.ActionAddComment, record(models.ActionAddComment))
	d.Register(models.ActionEscalate, record(models.ActionEscalate))

	r := dispatchRule()
	r.Actions = append(r.Actions, models.ActionSpec{Type: models.ActionEscalate})
	rec := &models.FiringRecord{
		TenantID:    "tenant-a",
		RuleID:      r.ID,
		EventID:     "evt-9",
		EventSource: models.SourcePoam,
		FiredAt:     time.Now(),
	}
	lvl := &models.EscalationLevel{Level: 1, Recipients: []string{"isso"}, Channels: []string{"slack"}}

	results := d.DispatchEscalation(context.Background(), r, rec, lvl)

	assert.Equal(t, []models.ActionType{models.ActionNotify, models.ActionEscalate}, invoked)
	require.Len(t, results, 2)
	for _, entry := range results {
		assert.Equal(t, models.ActionStatusCompleted, entry.Status)
	}
	assert.Len(t, rec.ActionsExecuted, 0, "original action list untouched")
}

func TestDispatchIncrementFailureKeepsLocalStatsUnchanged(t *testing.T) {
	rules := &fakeRuleStore{incErr: errors.New("db down")}
	d := NewDispatcher(rules, &fakeSink{}, time.Second, zap.NewNop())
	d.Register(models.ActionNotify, okHandler("sent"))

	r := dispatchRule()
	r.Actions = r.Actions[:1]
	d.Dispatch(context.Background(), r, dispatchEvent())

	assert.Equal(t, int64(0), r.TriggerCount)
	assert.Nil(t, r.LastTriggered)
}
