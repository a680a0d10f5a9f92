package rule

import (
	"context"
	"testing"
	"time"

	"complyeye/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func escalatingRule() models.Rule {
	r := models.Rule{
		TenantID: "tenant-a",
		Name:     "escalating",
		Enabled:  true,
		Actions:  []models.ActionSpec{{Type: models.ActionNotify}},
		Escalation: &models.EscalationConfig{
			Enabled: true,
			Levels: []models.EscalationLevel{
				{Level: 1, DelayMinutes: 30, Recipients: []string{"isso"}, Channels: []string{"slack"}},
				{Level: 2, DelayMinutes: 60, Recipients: []string{"issm"}, Channels: []string{"email"}},
			},
		},
	}
	r.ID = 1
	return r
}

func activeFiring(level int) *models.FiringRecord {
	due := time.Now().Add(-time.Minute)
	rec := &models.FiringRecord{
		TenantID:         "tenant-a",
		RuleID:           1,
		EventID:          "evt-1",
		EventSource:      models.SourcePoam,
		FiredAt:          time.Now().Add(-time.Hour),
		Status:           models.FiringStatusActive,
		EscalationLevel:  level,
		NextEscalationAt: &due,
	}
	rec.ID = 42
	return rec
}

func newTestScheduler(rules *fakeRuleStore, sink *fakeSink) *Scheduler {
	log := zap.NewNop()
	d := NewDispatcher(rules, sink, time.Second, log)
	d.Register(models.ActionNotify, okHandler("sent"))
	return NewScheduler(&fakeEscalationQuery{}, sink, rules, d, time.Minute, 2, log)
}

type fakeEscalationQuery struct {
	due []models.FiringRecord
	err error
}

func (q *fakeEscalationQuery) ListDueEscalations(context.Context, time.Time) ([]models.FiringRecord, error) {
	return q.due, q.err
}

func TestEscalateAdvancesToNextLevel(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{escalatingRule()}}
	sink := &fakeSink{}
	s := newTestScheduler(rules, sink)

	rec := activeFiring(0)
	s.Escalate(context.Background(), rec)

	assert.Equal(t, 1, rec.EscalationLevel)
	require.Len(t, rec.EscalationHistory, 1)
	entry := rec.EscalationHistory[0]
	assert.Equal(t, 1, entry.Level)
	assert.Equal(t, []string{"isso"}, entry.Recipients)
	assert.Equal(t, []string{"slack"}, entry.Channels)
	require.Len(t, entry.Actions, 1)
	assert.Equal(t, models.ActionStatusCompleted, entry.Actions[0].Status)

	require.NotNil(t, rec.NextEscalationAt)
	assert.WithinDuration(t, entry.EscalatedAt.Add(60*time.Minute), *rec.NextEscalationAt, time.Second)
	assert.Len(t, sink.updated, 1)
}

func TestEscalateTerminalAtMaxLevel(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{escalatingRule()}}
	sink := &fakeSink{}
	s := newTestScheduler(rules, sink)

	rec := activeFiring(2)
	s.Escalate(context.Background(), rec)

	assert.Equal(t, 2, rec.EscalationLevel)
	assert.Nil(t, rec.NextEscalationAt)
	assert.Empty(t, rec.EscalationHistory)
	assert.Len(t, sink.updated, 1)
}

func TestEscalateSkipsAcknowledged(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{escalatingRule()}}
	sink := &fakeSink{}
	s := newTestScheduler(rules, sink)

	rec := activeFiring(0)
	rec.Status = models.FiringStatusAcknowledged
	s.Escalate(context.Background(), rec)

	assert.Equal(t, 0, rec.EscalationLevel)
	assert.Nil(t, rec.NextEscalationAt)
	assert.Empty(t, rec.EscalationHistory)
}

func TestEscalateSkipsSuppressed(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{escalatingRule()}}
	s := newTestScheduler(rules, &fakeSink{})

	rec := activeFiring(0)
	rec.Suppressed = true
	s.Escalate(context.Background(), rec)

	assert.Equal(t, 0, rec.EscalationLevel)
	assert.Nil(t, rec.NextEscalationAt)
}

func TestEscalateHistoryAppendsAcrossLevels(t *testing.T) {
	rules := &fakeRuleStore{rules: []models.Rule{escalatingRule()}}
	s := newTestScheduler(rules, &fakeSink{})

	rec := activeFiring(0)
	s.Escalate(context.Background(), rec)
	s.Escalate(context.Background(), rec)

	require.Len(t, rec.EscalationHistory, 2)
	assert.Equal(t, 1, rec.EscalationHistory[0].Level)
	assert.Equal(t, 2, rec.EscalationHistory[1].Level)
	assert.Equal(t, 2, rec.EscalationLevel)
	assert.Nil(t, rec.NextEscalationAt, "ladder exhausted after the top level")
}

func TestNextLevelSelection(t *testing.T) {
	cfg := &models.EscalationConfig{
		Enabled: true,
		Levels: []models.EscalationLevel{
			{Level: 3, DelayMinutes: 90},
			{Level: 1, DelayMinutes: 30},
		},
	}

	next := cfg.NextLevel(0)
	require.NotNil(t, next)
	assert.Equal(t, 1, next.Level, "lowest level above current wins regardless of slice order")

	next = cfg.NextLevel(1)
	require.NotNil(t, next)
	assert.Equal(t, 3, next.Level)

	assert.Nil(t, cfg.NextLevel(3))
	assert.Nil(t, (*models.EscalationConfig)(nil).NextLevel(0))

	cfg.Enabled = false
	assert.Nil(t, cfg.NextLevel(0))
}
