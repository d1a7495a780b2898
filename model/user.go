package model

import "time"

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User is the profile document kept alongside every identity account.
// Its ID is the account ID.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Email     string    `gorm:"type:varchar(255);not null;index" json:"email" validate:"required,email"`
	Semester  int       `gorm:"not null" json:"semester" validate:"min=1,max=6"`
	Role      string    `gorm:"type:varchar(20);not null" json:"role" validate:"oneof=student admin"`
	College   string    `gorm:"type:varchar(255)" json:"college"`
	Verified  bool      `gorm:"not null" json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
