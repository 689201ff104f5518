package usersvc

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
)

// Reconciler replicates identity data from the auth service into the
// local profile store.
type Reconciler struct {
	repo profileStore
	logg *logger.Logger
	now  func() time.Time
}

func NewReconciler(repo profileStore, logg *logger.Logger) *Reconciler {
	return &Reconciler{
		repo: repo,
		logg: logg,
		now:  time.Now,
	}
}

// HandleUserRegistered materializes the replica row, or refreshes it
// when a blank bootstrap already exists for the same user.
func (r *Reconciler) HandleUserRegistered(ctx context.Context, payload *events.UserRegistered) error {
	profile, err := r.repo.FindProfile(ctx, payload.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		profile = &models.UserProfile{ID: payload.UserID}
	}

	if payload.Name != "" {
		profile.Name = payload.Name
	}
	if payload.Email != "" {
		profile.Email = payload.Email
	}
	if payload.Phone != "" {
		profile.Phone = payload.Phone
	}
	if payload.PasswordHash != "" {
		profile.PasswordHash = payload.PasswordHash
	}
	return r.repo.UpsertProfile(ctx, profile)
}

// HandleUserDataSynced fills blanks from the authoritative snapshot.
// Locally owned data always wins, so applying the same snapshot twice
// is a no-op.
func (r *Reconciler) HandleUserDataSynced(ctx context.Context, payload *events.UserDataSynced) error {
	profile, err := r.repo.FindProfile(ctx, payload.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		profile = &models.UserProfile{ID: payload.UserID}
	}

	changed := false
	if strings.TrimSpace(profile.Name) == "" && payload.Name != "" {
		profile.Name = payload.Name
		changed = true
	}
	if strings.TrimSpace(profile.Email) == "" && payload.Email != "" {
		profile.Email = payload.Email
		changed = true
	}
	if strings.TrimSpace(profile.Phone) == "" && payload.Phone != "" {
		profile.Phone = payload.Phone
		changed = true
	}
	if profile.PasswordHash == "" && payload.PasswordHash != "" {
		profile.PasswordHash = payload.PasswordHash
		changed = true
	}
	if !changed {
		return nil
	}
	return r.repo.UpsertProfile(ctx, profile)
}
