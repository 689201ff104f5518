package models

import (
	"strings"
	"time"
)

// UserProfile is the user service's replica of identity data plus the
// profile fields it owns. The ID mirrors the auth service's user ID, so
// it is assigned, never generated.
type UserProfile struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name         string    `gorm:"column:name;not null;default:''"`
	Email        string    `gorm:"column:email;type:text;not null;default:''"`
	Phone        string    `gorm:"column:phone;not null;default:''"`
	PasswordHash string    `gorm:"column:password_hash;not null;default:''"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// IsBlank reports whether replication has not yet filled identity data.
// Whitespace-only values count as blank.
func (p UserProfile) IsBlank() bool {
	return strings.TrimSpace(p.Name) == "" &&
		strings.TrimSpace(p.Email) == "" &&
		strings.TrimSpace(p.Phone) == ""
}
