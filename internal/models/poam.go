package models

import (
	"time"

	"gorm.io/gorm"
)

type PoamStatus string

const (
	PoamStatusOpen       PoamStatus = "open"
	PoamStatusInProgress PoamStatus = "in_progress"
	PoamStatusCompleted  PoamStatus = "completed"
	PoamStatusClosed     PoamStatus = "closed"
)

// PoamItem is a Plan of Action & Milestones entry tracked for a tenant's
// authorization package. Workflow actions (assign, update_priority,
// create_milestone, add_comment) mutate these records.
type PoamItem struct {
	gorm.Model
	TenantID    string     `gorm:"size:64;not null;index" json:"tenant_id"`
	ExternalID  string     `gorm:"size:64;index" json:"external_id"`
	Title       string     `gorm:"size:500;not null" json:"title"`
	Description string     `gorm:"size:2000;default:''" json:"description"`
	ControlID   string     `gorm:"size:32" json:"control_id"`
	Severity    Severity   `gorm:"size:20" json:"severity"`
	Status      PoamStatus `gorm:"size:20;default:'open';index" json:"status"`
	AssignedTo  string     `gorm:"size:128" json:"assigned_to"`
	Priority    int        `gorm:"default:0" json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	Milestones []Milestone   `gorm:"foreignKey:PoamID;constraint:OnDelete:CASCADE" json:"milestones,omitempty"`
	Comments   []PoamComment `gorm:"foreignKey:PoamID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

// TableName returns the table name for GORM.
func (PoamItem) TableName() string {
	return "poam_items"
}

type Milestone struct {
	gorm.Model
	PoamID      uint       `gorm:"not null;index" json:"poam_id"`
	Description string     `gorm:"size:1000;not null" json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `gorm:"size:20;default:'pending'" json:"status"`
}

// TableName returns the table name for GORM.
func (Milestone) TableName() string {
	return "poam_milestones"
}

type PoamComment struct {
	gorm.Model
	PoamID uint   `gorm:"not null;index" json:"poam_id"`
	Author string `gorm:"size:128" json:"author"`
	Body   string `gorm:"size:2000;not null" json:"body"`
}

// TableName returns the table name for GORM.
func (PoamComment) TableName() string {
	return "poam_comments"
}
