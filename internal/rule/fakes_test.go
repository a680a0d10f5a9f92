package rule

import (
	"context"
	"errors"
	"time"

	"complyeye/internal/models"
)

type fakeRuleStore struct {
	rules      []models.Rule
	listErr    error
	getErr     error
	incErr     error
	increments map[uint]int
}

func (s *fakeRuleStore) GetEnabledRules(_ context.Context, tenantID string) ([]models.Rule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Rule
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeRuleStore) GetRule(_ context.Context, id uint) (*models.Rule, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	for i := range s.rules {
		if s.rules[i].ID == id {
			return &s.rules[i], nil
		}
	}
	return nil, errors.New("rule not found")
}

func (s *fakeRuleStore) IncrementTriggerCount(_ context.Context, ruleID uint, _ time.Time) error {
	if s.incErr != nil {
		return s.incErr
	}
	if s.increments == nil {
		s.increments = make(map[uint]int)
	}
	s.increments[ruleID]++
	return nil
}

type fakeSink struct {
	saved     []*models.FiringRecord
	updated   []*models.FiringRecord
	saveErr   error
	updateErr error
}

func (s *fakeSink) Save(_ context.Context, rec *models.FiringRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, rec)
	return nil
}

func (s *fakeSink) Update(_ context.Context, rec *models.FiringRecord) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, rec)
	return nil
}

type fakeHistory struct {
	count int64
	err   error
}

func (h *fakeHistory) CountUnresolvedFirings(context.Context, string, uint, time.Time) (int64, error) {
	return h.count, h.err
}
