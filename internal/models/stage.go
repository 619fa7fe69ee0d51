package models

import "time"

// Stage types.
const (
	StageTypeLead        = "lead"
	StageTypeApplication = "application"
)

// Stage is an ordered pipeline position within its type.
type Stage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:100;not null"`
	Type      string `gorm:"size:16;not null;index"`
	Order     int    `gorm:"column:position;default:0;index"`
	Active    bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
