package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ResourceStatusActive   = "active"
	ResourceStatusInactive = "inactive"
)

// Resource categories
const (
	CategoryNotes       = "notes"
	CategoryAssignments = "assignments"
	CategoryPapers      = "papers"
	CategoryVideos      = "videos"
	CategoryCode        = "code"
)

// Resource is a study material: a stored file plus its catalogue metadata.
type Resource struct {
	ID            string                      `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required"`
	Title         string                      `gorm:"type:varchar(255);not null" json:"title" validate:"required"`
	Description   string                      `gorm:"type:text" json:"description"`
	Semester      int                         `gorm:"not null;index" json:"semester" validate:"min=1,max=6"`
	Subject       string                      `gorm:"type:varchar(255);not null;index" json:"subject" validate:"required"`
	Category      string                      `gorm:"type:varchar(20);not null;index" json:"category" validate:"oneof=notes assignments papers videos code"`
	FileID        string                      `gorm:"type:varchar(64)" json:"file_id"`
	FileType      string                      `gorm:"type:varchar(255)" json:"file_type"`
	FileSize      int64                       `gorm:"not null" json:"file_size" validate:"min=0"`
	PageCount     int                         `json:"page_count,omitempty"`
	UploadedBy    string                      `gorm:"type:varchar(36);index" json:"uploaded_by"`
	UploadDate    time.Time                   `gorm:"not null;index" json:"upload_date"`
	DownloadCount int64                       `gorm:"not null" json:"download_count" validate:"min=0"`
	Rating        float64                     `gorm:"not null" json:"rating" validate:"min=0,max=5"`
	Tags          datatypes.JSONSlice[string] `json:"tags"`
	Status        string                      `gorm:"type:varchar(20);not null;index" json:"status" validate:"oneof=active inactive"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (Resource) TableName() string {
	return "resources"
}

// IsActive reports whether the resource is listed.
func (r *Resource) IsActive() bool {
	return r.Status == ResourceStatusActive
}
