package model

import (
	"time"

	"gorm.io/datatypes"
)

// Subject is a course subject taught in a semester.
type Subject struct {
	ID            string                      `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required"`
	Name          string                      `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Code          string                      `gorm:"type:varchar(50);not null;uniqueIndex" json:"code" validate:"required"`
	Semester      int                         `gorm:"not null;index" json:"semester" validate:"min=1,max=6"`
	Credits       int                         `gorm:"not null" json:"credits" validate:"min=0"`
	Description   string                      `gorm:"type:text" json:"description"`
	Prerequisites datatypes.JSONSlice[string] `json:"prerequisites"` // ordered subject codes
	ResourceCount int                         `gorm:"not null" json:"resource_count" validate:"min=0"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (Subject) TableName() string {
	return "subjects"
}
