package models

import "time"

// Application tracks the four independent admission sub-processes of a lead.
type Application struct {
	ID                  uint   `gorm:"primaryKey;autoIncrement"`
	LeadID              uint   `gorm:"not null;uniqueIndex"`
	DocumentStatus      string `gorm:"size:16;default:pending"`
	DocumentNotes       string `gorm:"type:text"`
	DocumentVerifiedAt  *time.Time
	FeeStatus           string   `gorm:"size:16;default:pending"`
	FeeAmount           *float64 `gorm:"type:decimal(10,2)"`
	FeePaidAt           *time.Time
	AdmissionStatus     string `gorm:"size:16;default:pending"`
	AdmissionDecisionAt *time.Time
	AdmissionDecisionBy *uint
	EnrollmentStatus    string `gorm:"size:16;default:pending"`
	EnrollmentDate      *time.Time
	OverallStatus       string `gorm:"size:16;default:in_progress;index"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
