package store

import (
	"context"
	"fmt"
	"time"

	"complyeye/internal/models"

	"gorm.io/gorm"
)

// RuleStore persists alert rules in the document database.
type RuleStore struct {
	db *gorm.DB
}

func NewRuleStore(db *gorm.DB) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) CreateRule(ctx context.Context, r *models.Rule) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *RuleStore) UpdateRule(ctx context.Context, r *models.Rule) error {
	return s.db.WithContext(ctx).Save(r).Error
}

func (s *RuleStore) DeleteRule(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Rule{}, id).Error
}

func (s *RuleStore) GetRule(ctx context.Context, id uint) (*models.Rule, error) {
	var r models.Rule
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRules returns all rules for a tenant, optionally filtered by
// enablement.
func (s *RuleStore) ListRules(ctx context.Context, tenantID string, enabled *bool) ([]models.Rule, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if enabled != nil {
		query = query.Where("enabled = ?", *enabled)
	}
	var rules []models.Rule
	if err := query.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// GetEnabledRules returns the tenant's enabled rules, the working set of
// one evaluation pass.
func (s *RuleStore) GetEnabledRules(ctx context.Context, tenantID string) ([]models.Rule, error) {
	var rules []models.Rule
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND enabled = ?", tenantID, true).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// SetEnabled flips a rule's enabled flag.
func (s *RuleStore) SetEnabled(ctx context.Context, id uint, enabled bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.Rule{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("rule %d not found", id)
	}
	return nil
}

// IncrementTriggerCount bumps the rule's trigger statistics with a
// single SQL expression so that concurrent firings of the same rule
// serialize inside the database instead of losing updates.
func (s *RuleStore) IncrementTriggerCount(ctx context.Context, ruleID uint, firedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Rule{}).
		Where("id = ?", ruleID).
		Updates(map[string]any{
			"trigger_count":  gorm.Expr("trigger_count + 1"),
			"last_triggered": firedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("rule %d not found", ruleID)
	}
	return nil
}
