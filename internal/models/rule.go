package models

import (
	"time"

	"gorm.io/gorm"
)

type Operator string

const (
	OperatorEquals           Operator = "equals"
	OperatorNotEquals        Operator = "not_equals"
	OperatorContains         Operator = "contains"
	OperatorGreaterThan      Operator = "greater_than"
	OperatorLessThan         Operator = "less_than"
	OperatorIn               Operator = "in"
	OperatorNotIn            Operator = "not_in"
	OperatorPercentageChange Operator = "percentage_change"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type ActionType string

const (
	ActionAssign          ActionType = "assign"
	ActionEscalate        ActionType = "escalate"
	ActionNotify          ActionType = "notify"
	ActionUpdatePriority  ActionType = "update_priority"
	ActionCreateMilestone ActionType = "create_milestone"
	ActionAddComment      ActionType = "add_comment"
)

// Condition tests one metric extracted from the event payload against a
// comparison value.
type Condition struct {
	Metric        string   `json:"metric"`
	Operator      Operator `json:"operator"`
	Value         any      `json:"value"`
	WindowMinutes int      `json:"window_minutes,omitempty"`
}

// TriggerGroup is one source-scoped set of AND-combined conditions.
// A rule fires when any one of its groups matches.
type TriggerGroup struct {
	Source     string      `json:"source"`
	Conditions []Condition `json:"conditions"`
}

// ActionSpec names one action to take when the rule fires.
type ActionSpec struct {
	Type       ActionType     `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// SuppressionConfig rate-limits a rule based on its recent unresolved
// firing backlog.
type SuppressionConfig struct {
	Enabled            bool `json:"enabled"`
	WindowMinutes      int  `json:"window_minutes"`
	MaxFiringsInWindow int  `json:"max_firings_in_window"`
}

// EscalationLevel is one step in a rule's escalation ladder.
type EscalationLevel struct {
	Level        int      `json:"level"`
	DelayMinutes int      `json:"delay_minutes"`
	Recipients   []string `json:"recipients"`
	Channels     []string `json:"channels"`
}

type EscalationConfig struct {
	Enabled bool              `json:"enabled"`
	Levels  []EscalationLevel `json:"levels"`
}

// NextLevel returns the lowest configured level strictly above current,
// or nil when the ladder is exhausted.
func (c *EscalationConfig) NextLevel(current int) *EscalationLevel {
	if c == nil || !c.Enabled {
		return nil
	}
	var next *EscalationLevel
	for i := range c.Levels {
		lvl := &c.Levels[i]
		if lvl.Level <= current {
			continue
		}
		if next == nil || lvl.Level < next.Level {
			next = lvl
		}
	}
	return next
}

// Rule is a tenant-scoped policy mapping trigger conditions to actions.
// TriggerCount and LastTriggered are engine-maintained statistics; every
// other field is mutated only by explicit operator updates.
type Rule struct {
	gorm.Model
	TenantID    string            `gorm:"size:64;not null;index" json:"tenant_id"`
	Name        string            `gorm:"size:255;not null" json:"name"`
	Description string            `gorm:"size:1000;default:''" json:"description"`
	Enabled     bool              `gorm:"not null;default:true;index" json:"enabled"`
	Priority    int               `gorm:"not null;default:0" json:"priority"`
	Severity    Severity          `gorm:"size:20;not null;default:'warning'" json:"severity"`
	Triggers    []TriggerGroup    `gorm:"serializer:json" json:"triggers"`
	Actions     []ActionSpec      `gorm:"serializer:json" json:"actions"`
	Suppression SuppressionConfig `gorm:"serializer:json" json:"suppression"`
	Escalation  *EscalationConfig `gorm:"serializer:json" json:"escalation,omitempty"`

	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	TriggerCount  int64      `gorm:"not null;default:0" json:"trigger_count"`
}

// TableName returns the table name for GORM.
func (Rule) TableName() string {
	return "rules"
}
