package models

import "time"

// AuthUser is the canonical identity record owned by the auth service.
type AuthUser struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Email        string     `gorm:"column:email;type:text;not null;uniqueIndex:uq_auth_users_email"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Name         string     `gorm:"column:name;not null"`
	Phone        string     `gorm:"column:phone;not null;default:''"`
	IsAdmin      bool       `gorm:"column:is_admin;not null;default:false"`
	IsBlocked    bool       `gorm:"column:is_blocked;not null;default:false"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
}

func (AuthUser) TableName() string { return "auth_users" }
