package rule

import (
	"context"
	"time"

	"complyeye/internal/models"

	"go.uber.org/zap"
)

// HistoryQuery counts recent unresolved, non-suppressed firings of a
// rule. Resolved firings are excluded: the gate protects against an
// unresolved backlog, not raw firing volume.
type HistoryQuery interface {
	CountUnresolvedFirings(ctx context.Context, tenantID string, ruleID uint, since time.Time) (int64, error)
}

// SuppressionGate decides whether a matched rule should be withheld
// based on its rolling suppression window.
type SuppressionGate struct {
	history HistoryQuery
	log     *zap.Logger
	now     func() time.Time
}

func NewSuppressionGate(history HistoryQuery, log *zap.Logger) *SuppressionGate {
	return &SuppressionGate{
		history: history,
		log:     log,
		now:     time.Now,
	}
}

// IsSuppressed returns true when the rule's unresolved firing count
// within the window has reached its cap. A history-query failure counts
// as not suppressed: under-suppressing is safer than dropping a real
// alert.
func (g *SuppressionGate) IsSuppressed(ctx context.Context, r *models.Rule) bool {
	if !r.Suppression.Enabled {
		return false
	}

	windowStart := g.now().Add(-time.Duration(r.Suppression.WindowMinutes) * time.Minute)
	count, err := g.history.CountUnresolvedFirings(ctx, r.TenantID, r.ID, windowStart)
	if err != nil {
		g.log.Warn("suppression check failed, treating rule as not suppressed",
			zap.Uint("rule_id", r.ID),
			zap.String("tenant_id", r.TenantID),
			zap.Error(err))
		return false
	}

	return count >= int64(r.Suppression.MaxFiringsInWindow)
}
