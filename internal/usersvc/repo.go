package usersvc

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/threadline/threadline-backend/pkg/db/models"
)

// Repository exposes persistence operations for profiles and addresses.
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

// FindProfile loads a profile by user ID.
func (r *Repository) FindProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).First(&profile, userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertProfile inserts or replaces a profile row keyed by user ID.
func (r *Repository) UpsertProfile(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(profile).Error
}

// SaveProfile persists the full profile row.
func (r *Repository) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// CreateAddress inserts a new address.
func (r *Repository) CreateAddress(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// FindAddress loads an address scoped to its owner.
func (r *Repository) FindAddress(ctx context.Context, id, userID int64) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// ListAddresses returns every address a user owns, default first.
func (r *Repository) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveAddress persists the full address row.
func (r *Repository) SaveAddress(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Save(address).Error
}

// DeleteAddress removes an address scoped to its owner and reports
// whether a row was deleted.
func (r *Repository) DeleteAddress(ctx context.Context, id, userID int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Address{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearDefaultAddress unsets the default flag on every address a user owns.
func (r *Repository) ClearDefaultAddress(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("user_id = ? AND is_default", userID).
		Update("is_default", false).Error
}
