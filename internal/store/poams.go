package store

import (
	"context"
	"fmt"
	"time"

	"complyeye/internal/models"

	"gorm.io/gorm"
)

// PoamStore persists POA&M items and the workflow mutations the
// capability handlers apply to them.
type PoamStore struct {
	db *gorm.DB
}

func NewPoamStore(db *gorm.DB) *PoamStore {
	return &PoamStore{db: db}
}

func (s *PoamStore) Create(ctx context.Context, item *models.PoamItem) error {
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *PoamStore) Get(ctx context.Context, id uint) (*models.PoamItem, error) {
	var item models.PoamItem
	err := s.db.WithContext(ctx).
		Preload("Milestones").
		Preload("Comments").
		First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *PoamStore) List(ctx context.Context, tenantID string, status models.PoamStatus) ([]models.PoamItem, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var items []models.PoamItem
	if err := query.Order("priority desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindByExternalID resolves the POA&M item an event payload references
// by its eMASS identifier.
func (s *PoamStore) FindByExternalID(ctx context.Context, tenantID, externalID string) (*models.PoamItem, error) {
	var item models.PoamItem
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *PoamStore) Assign(ctx context.Context, id uint, assignee string) error {
	return s.updateColumns(ctx, id, map[string]any{
		"assigned_to": assignee,
		"status":      models.PoamStatusInProgress,
	})
}

func (s *PoamStore) UpdatePriority(ctx context.Context, id uint, priority int) error {
	return s.updateColumns(ctx, id, map[string]any{"priority": priority})
}

func (s *PoamStore) AddMilestone(ctx context.Context, id uint, description string, due *time.Time) (*models.Milestone, error) {
	m := &models.Milestone{
		PoamID:      id,
		Description: description,
		DueDate:     due,
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PoamStore) AddComment(ctx context.Context, id uint, author, body string) (*models.PoamComment, error) {
	c := &models.PoamComment{
		PoamID: id,
		Author: author,
		Body:   body,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PoamStore) updateColumns(ctx context.Context, id uint, values map[string]any) error {
	result := s.db.WithContext(ctx).
		Model(&models.PoamItem{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("poam item %d not found", id)
	}
	return nil
}
