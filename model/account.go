package model

import (
	"time"

	"gorm.io/gorm"
)

// Account is an identity: credentials and verification state.
// Profile data lives in User under the same ID.
type Account struct {
	ID            string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email         string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	PasswordHash  string         `gorm:"not null" json:"-"`
	EmailVerified bool           `gorm:"not null" json:"email_verified"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

const (
	TokenPurposeRecovery     = "recovery"
	TokenPurposeVerification = "verification"
)

// AccountToken is a single-use secret sent by email for password recovery
// or email verification.
type AccountToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	AccountID string     `gorm:"type:varchar(36);not null;index" json:"account_id"`
	Purpose   string     `gorm:"type:varchar(20);not null;index" json:"purpose"`
	Secret    string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (AccountToken) TableName() string {
	return "account_tokens"
}

// IsExpired checks if the token has expired
func (t *AccountToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsUsed checks if the token has been used
func (t *AccountToken) IsUsed() bool {
	return t.UsedAt != nil
}

// MarkAsUsed marks the token as used
func (t *AccountToken) MarkAsUsed() {
	now := time.Now()
	t.UsedAt = &now
}
