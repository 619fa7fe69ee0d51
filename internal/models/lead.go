package models

import "time"

// Lead statuses.
const (
	LeadActive    = "active"
	LeadConverted = "converted"
	LeadLost      = "lost"
	LeadDormant   = "dormant"
)

// Lead is a prospective student moving through the admissions pipeline.
type Lead struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	FirstName      string    `gorm:"size:100;not null"`
	LastName       string    `gorm:"size:100;not null"`
	Email          string    `gorm:"size:120;not null;index"`
	Phone          string    `gorm:"size:20"`
	SourceID       *uint     `gorm:"index"`
	StageID        *uint     `gorm:"index"`
	AssignedTo     *uint     `gorm:"index"`
	Status         string    `gorm:"size:16;default:active;index"`
	ReInquiryCount int       `gorm:"default:0"`
	LastActivityAt time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Stage       *Stage       `gorm:"foreignKey:StageID"`
	Application *Application `gorm:"foreignKey:LeadID"`
}

// FullName joins first and last name.
func (l *Lead) FullName() string {
	switch {
	case l.FirstName == "":
		return l.LastName
	case l.LastName == "":
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// Source is where a lead came from (web form, fair, referral, publisher).
type Source struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:100;not null;uniqueIndex"`
	Active    bool   `gorm:"not null"`
	CreatedAt time.Time
}
