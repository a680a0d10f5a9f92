package models

import (
	"time"

	"gorm.io/gorm"
)

type FiringStatus string

const (
	FiringStatusActive       FiringStatus = "active"
	FiringStatusAcknowledged FiringStatus = "acknowledged"
	FiringStatusResolved     FiringStatus = "resolved"
)

type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusFailed    ActionStatus = "failed"
)

type DispatchStatus string

const (
	DispatchStatusCompleted DispatchStatus = "completed"
	DispatchStatusFailed    DispatchStatus = "failed"
	DispatchStatusSkipped   DispatchStatus = "skipped"
)

// ActionExecution records the outcome of one action attempt. A firing
// record carries exactly one entry per action in the rule's action list,
// in the same order.
type ActionExecution struct {
	Type       ActionType   `json:"type"`
	Status     ActionStatus `json:"status"`
	Result     string       `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	ExecutedAt *time.Time   `json:"executed_at,omitempty"`
}

// EscalationEntry is one append-only step in a firing's escalation
// history, including the outcomes of the re-invoked actions.
type EscalationEntry struct {
	Level       int               `json:"level"`
	EscalatedAt time.Time         `json:"escalated_at"`
	Recipients  []string          `json:"recipients"`
	Channels    []string          `json:"channels"`
	Actions     []ActionExecution `json:"actions,omitempty"`
}

// FiringRecord is the engine's output per rule match. Status transitions
// (acknowledge, resolve) are performed by external actors; the escalation
// history is append-only.
type FiringRecord struct {
	gorm.Model
	TenantID    string         `gorm:"size:64;index" json:"tenant_id"`
	RuleID      uint           `gorm:"not null;index:idx_firings_rule_fired,priority:1" json:"rule_id"`
	RuleName    string         `gorm:"size:255" json:"rule_name"`
	Severity    Severity       `gorm:"size:20" json:"severity"`
	EventID     string         `gorm:"size:64" json:"event_id"`
	EventSource string         `gorm:"size:64" json:"event_source"`
	EventData   map[string]any `gorm:"serializer:json" json:"event_data"`

	FiredAt        time.Time         `gorm:"not null;index:idx_firings_rule_fired,priority:2" json:"fired_at"`
	Suppressed     bool              `gorm:"not null;default:false" json:"suppressed"`
	Status         FiringStatus      `gorm:"size:20;index" json:"status"`
	DispatchStatus DispatchStatus    `gorm:"size:20" json:"dispatch_status"`
	ActionsExecuted []ActionExecution `gorm:"serializer:json" json:"actions_executed"`

	EscalationLevel   int               `gorm:"not null;default:0" json:"escalation_level"`
	EscalationHistory []EscalationEntry `gorm:"serializer:json" json:"escalation_history,omitempty"`
	NextEscalationAt  *time.Time        `gorm:"index" json:"next_escalation_at,omitempty"`

	AcknowledgedBy string     `gorm:"size:128" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedBy     string     `gorm:"size:128" json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// TableName returns the table name for GORM.
func (FiringRecord) TableName() string {
	return "firing_records"
}

// Unresolved reports whether the firing still needs attention.
func (f *FiringRecord) Unresolved() bool {
	return f.Status != FiringStatusResolved
}
