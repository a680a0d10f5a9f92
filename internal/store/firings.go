package store

import (
	"context"
	"fmt"
	"time"

	"complyeye/internal/models"

	"gorm.io/gorm"
)

// FiringStore persists firing records and answers the suppression and
// escalation queries of the engine.
type FiringStore struct {
	db *gorm.DB
}

func NewFiringStore(db *gorm.DB) *FiringStore {
	return &FiringStore{db: db}
}

func (s *FiringStore) Save(ctx context.Context, rec *models.FiringRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *FiringStore) Update(ctx context.Context, rec *models.FiringRecord) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *FiringStore) Get(ctx context.Context, id uint) (*models.FiringRecord, error) {
	var rec models.FiringRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListFirings returns a tenant's firings newest first, optionally
// filtered by status.
func (s *FiringStore) ListFirings(ctx context.Context, tenantID string, status models.FiringStatus, limit int) ([]models.FiringRecord, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var recs []models.FiringRecord
	if err := query.Order("fired_at desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// CountUnresolvedFirings counts non-suppressed firings of a rule since
// the window start whose status has not become resolved. Suppressed
// records are excluded so the gate does not feed on its own output.
func (s *FiringStore) CountUnresolvedFirings(ctx context.Context, tenantID string, ruleID uint, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.FiringRecord{}).
		Where("tenant_id = ? AND rule_id = ? AND fired_at >= ? AND suppressed = ? AND status <> ?",
			tenantID, ruleID, since, false, models.FiringStatusResolved).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListDueEscalations returns active, non-suppressed firings whose next
// escalation time has passed.
func (s *FiringStore) ListDueEscalations(ctx context.Context, now time.Time) ([]models.FiringRecord, error) {
	var recs []models.FiringRecord
	err := s.db.WithContext(ctx).
		Where("next_escalation_at IS NOT NULL AND next_escalation_at <= ? AND suppressed = ? AND status = ?",
			now, false, models.FiringStatusActive).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Acknowledge marks an active firing as acknowledged.
func (s *FiringStore) Acknowledge(ctx context.Context, id uint, userID string) (*models.FiringRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.FiringStatusActive {
		return nil, fmt.Errorf("firing %d is %s, only active firings can be acknowledged", id, rec.Status)
	}

	now := time.Now()
	rec.Status = models.FiringStatusAcknowledged
	rec.AcknowledgedBy = userID
	rec.AcknowledgedAt = &now

	if err := s.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Resolve marks a firing as resolved, ending its suppression-window
// contribution and its escalation ladder.
func (s *FiringStore) Resolve(ctx context.Context, id uint, userID string) (*models.FiringRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == models.FiringStatusResolved {
		return nil, fmt.Errorf("firing %d is already resolved", id)
	}

	now := time.Now()
	rec.Status = models.FiringStatusResolved
	rec.ResolvedBy = userID
	rec.ResolvedAt = &now
	rec.NextEscalationAt = nil

	if err := s.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
