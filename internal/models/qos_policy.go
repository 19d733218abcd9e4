package models

import "strings"

// Priority is an ordered QoS priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities low < medium < high; unknown values rank zero.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

// ParsePriority normalises user input into a Priority.
func ParsePriority(value string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(value)))
	if p.Rank() == 0 {
		return "", false
	}
	return p, true
}

// QoSPolicy is a named bandwidth and priority profile. BandwidthLimit is in kbit/s.
type QoSPolicy struct {
	BaseModel

	Name           string   `gorm:"type:varchar(120);uniqueIndex;not null" json:"name"`
	BandwidthLimit int      `gorm:"not null" json:"bandwidth_limit"`
	Priority       Priority `gorm:"type:varchar(16);not null;default:medium" json:"priority"`
	Description    string   `gorm:"type:text" json:"description,omitempty"`
}

// TableName keeps the table name readable; gorm would otherwise produce "qo_s_policies".
func (QoSPolicy) TableName() string {
	return "qos_policies"
}
