package rule

import (
	"context"
	"time"

	"complyeye/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// EscalationQuery lists firings whose next escalation time has come due.
// Suppressed, acknowledged, and resolved firings are never returned.
type EscalationQuery interface {
	ListDueEscalations(ctx context.Context, now time.Time) ([]models.FiringRecord, error)
}

// Scheduler periodically escalates still-unresolved firings. Escalation
// never re-evaluates trigger conditions; it acts purely on unresolved
// elapsed time.
type Scheduler struct {
	firings    EscalationQuery
	sink       FiringSink
	rules      RuleStore
	dispatcher *Dispatcher
	log        *zap.Logger
	interval   time.Duration
	sem        *semaphore.Weighted
	now        func() time.Time
}

func NewScheduler(firings EscalationQuery, sink FiringSink, rules RuleStore, dispatcher *Dispatcher, interval time.Duration, maxConcurrent int64, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Scheduler{
		firings:    firings,
		sink:       sink,
		rules:      rules,
		dispatcher: dispatcher,
		log:        log,
		interval:   interval,
		sem:        semaphore.NewWeighted(maxConcurrent),
		now:        time.Now,
	}
}

// Run scans for due escalations until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	now := s.now()
	due, err := s.firings.ListDueEscalations(ctx, now)
	if err != nil {
		s.log.Error("failed to list due escalations", zap.Error(err))
		return
	}

	for i := range due {
		rec := due[i]
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func() {
			defer s.sem.Release(1)
			s.Escalate(ctx, &rec)
		}()
	}
}

// Escalate advances one firing to its next escalation level: appends a
// history entry, re-invokes the rule's notify/escalate actions against
// the level's recipients and channels, and schedules the following
// level. The ladder terminates when no higher level is configured or the
// firing has been acknowledged or resolved.
func (s *Scheduler) Escalate(ctx context.Context, rec *models.FiringRecord) {
	if rec.Suppressed || rec.Status != models.FiringStatusActive {
		rec.NextEscalationAt = nil
		s.persist(ctx, rec)
		return
	}

	r, err := s.rules.GetRule(ctx, rec.RuleID)
	if err != nil {
		s.log.Error("failed to load rule for escalation",
			zap.Uint("rule_id", rec.RuleID), zap.Uint("firing_id", rec.ID), zap.Error(err))
		return
	}

	lvl := r.Escalation.NextLevel(rec.EscalationLevel)
	if lvl == nil {
		rec.NextEscalationAt = nil
		s.persist(ctx, rec)
		return
	}

	escalatedAt := s.now()
	entry := models.EscalationEntry{
		Level:       lvl.Level,
		EscalatedAt: escalatedAt,
		Recipients:  lvl.Recipients,
		Channels:    lvl.Channels,
	}
	entry.Actions = s.dispatcher.DispatchEscalation(ctx, r, rec, lvl)

	rec.EscalationHistory = append(rec.EscalationHistory, entry)
	rec.EscalationLevel = lvl.Level
	rec.NextEscalationAt = nextEscalationAt(r.Escalation, lvl.Level, escalatedAt)

	s.persist(ctx, rec)

	s.log.Info("firing escalated",
		zap.Uint("firing_id", rec.ID),
		zap.Uint("rule_id", rec.RuleID),
		zap.Int("level", lvl.Level))
}

func (s *Scheduler) persist(ctx context.Context, rec *models.FiringRecord) {
	if err := s.sink.Update(ctx, rec); err != nil {
		s.log.Error("failed to persist escalated firing",
			zap.Uint("firing_id", rec.ID), zap.Error(err))
	}
}
