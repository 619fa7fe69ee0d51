package models

import "time"

// Activity is an immutable audit entry on a lead's timeline.
type Activity struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"`
	Type        string         `gorm:"size:32;not null;index"`
	Description string         `gorm:"type:text;not null"`
	LeadID      uint           `gorm:"not null;index"`
	UserID      *uint
	Metadata    map[string]any `gorm:"serializer:json;type:text"`
	CreatedAt   time.Time      `gorm:"index"`
}
