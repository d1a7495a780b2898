package model

import "time"

// Download is one row per download event. Rows are never updated or deleted.
type Download struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required"`
	UserID       string    `gorm:"type:varchar(36);not null;index" json:"user_id" validate:"required"`
	ResourceID   string    `gorm:"type:varchar(36);not null;index" json:"resource_id" validate:"required"`
	DownloadDate time.Time `gorm:"not null;index" json:"download_date"`
	FileSize     int64     `gorm:"not null" json:"file_size" validate:"min=0"`
	IPAddress    string    `gorm:"type:varchar(64)" json:"ip_address"`
}

func (Download) TableName() string {
	return "downloads"
}

// Bookmark links a user to a resource. The (user, resource) pair is unique.
type Bookmark struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required"`
	UserID     string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_bookmarks_user_resource" json:"user_id" validate:"required"`
	ResourceID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_bookmarks_user_resource;index" json:"resource_id" validate:"required"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}
