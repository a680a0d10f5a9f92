package models

import "time"

// Well-known event sources. Trigger groups may also use SourceAll to
// match events from any source.
const (
	SourcePoam    = "poam"
	SourceControl = "control"
	SourceEmass   = "emass"
	SourceAll     = "all"
)

// Event is one immutable input to an evaluation pass. Data is the raw
// payload as posted by the producing service; its shape varies per source.
type Event struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}
