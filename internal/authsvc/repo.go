package authsvc

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/pagination"
)

// Repository exposes persistence operations for identity data.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateUser inserts a new identity record.
func (r *Repository) CreateUser(ctx context.Context, user *models.AuthUser) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindUserByID loads a user by primary key.
func (r *Repository) FindUserByID(ctx context.Context, id int64) (*models.AuthUser, error) {
	var user models.AuthUser
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByEmail loads a user by unique email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	var user models.AuthUser
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveUser persists the full user row.
func (r *Repository) SaveUser(ctx context.Context, user *models.AuthUser) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// UpdateLastLogin stamps the last successful login time.
func (r *Repository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.AuthUser{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

// ListUsers returns a cursor page of users ordered by creation time.
func (r *Repository) ListUsers(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.AuthUser, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.AuthUser
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateRefreshToken inserts a refresh token row.
func (r *Repository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// FindRefreshToken loads a refresh token by its stored digest.
func (r *Repository) FindRefreshToken(ctx context.Context, digest string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ?", digest).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeRefreshToken marks a single token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, digest string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", digest).
		Update("revoked_at", at).Error
}

// RevokeAllForUser revokes every active token belonging to a user.
func (r *Repository) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at).Error
}
