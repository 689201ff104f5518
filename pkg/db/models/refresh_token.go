package models

import "time"

// RefreshToken stores the SHA-256 hex digest of an issued refresh token.
// The raw secret is only ever held by the client.
type RefreshToken struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64      `gorm:"column:user_id;not null;index:idx_refresh_tokens_user_id"`
	Token     string     `gorm:"column:token;type:text;not null;uniqueIndex:uq_refresh_tokens_token"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// IsActive reports whether the token can still be exchanged.
func (t RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
