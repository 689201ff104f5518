package authsvc

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
)

// Reconciler applies replication events from the other services to the
// identity store. Events for unknown users are dropped; the auth
// service is the identity origin, so such events are stale by
// definition.
type Reconciler struct {
	repo     identityStore
	producer eventPublisher
	logg     *logger.Logger
	now      func() time.Time
}

func NewReconciler(repo identityStore, producer eventPublisher, logg *logger.Logger) *Reconciler {
	return &Reconciler{
		repo:     repo,
		producer: producer,
		logg:     logg,
		now:      time.Now,
	}
}

// HandleProfileCreated merges a profile materialized by the user
// service. Only non-empty fields overwrite local data.
func (r *Reconciler) HandleProfileCreated(ctx context.Context, payload *events.UserProfileCreated) error {
	user, err := r.repo.FindUserByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logg.Warn(ctx, "profile.created for unknown user, dropped")
			return nil
		}
		return err
	}

	changed := false
	if payload.Name != "" && payload.Name != user.Name {
		user.Name = payload.Name
		changed = true
	}
	if payload.Phone != "" && payload.Phone != user.Phone {
		user.Phone = payload.Phone
		changed = true
	}
	if email := normalizeEmail(payload.Email); email != "" && email != user.Email {
		user.Email = email
		changed = true
	}
	if !changed {
		return nil
	}
	return r.repo.SaveUser(ctx, user)
}

// HandleProfileUpdated applies a partial patch: nil fields were not
// part of the update and stay untouched.
func (r *Reconciler) HandleProfileUpdated(ctx context.Context, payload *events.UserProfileUpdated) error {
	user, err := r.repo.FindUserByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logg.Warn(ctx, "profile.updated for unknown user, dropped")
			return nil
		}
		return err
	}

	changed := false
	if payload.Name != nil && *payload.Name != user.Name {
		user.Name = *payload.Name
		changed = true
	}
	if payload.Phone != nil && *payload.Phone != user.Phone {
		user.Phone = *payload.Phone
		changed = true
	}
	if payload.Email != nil && *payload.Email != user.Email {
		user.Email = normalizeEmail(*payload.Email)
		changed = true
	}
	if !changed {
		return nil
	}
	return r.repo.SaveUser(ctx, user)
}

// HandlePasswordChanged unconditionally replaces the stored hash when
// the event carries a non-empty one.
func (r *Reconciler) HandlePasswordChanged(ctx context.Context, payload *events.UserPasswordChanged) error {
	if payload.PasswordHash == "" {
		return nil
	}

	user, err := r.repo.FindUserByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logg.Warn(ctx, "password.changed for unknown user, dropped")
			return nil
		}
		return err
	}

	if user.PasswordHash == payload.PasswordHash {
		return nil
	}
	user.PasswordHash = payload.PasswordHash
	return r.repo.SaveUser(ctx, user)
}

// HandleSyncRequested answers with an authoritative snapshot so the
// requesting replica can fill its blanks.
func (r *Reconciler) HandleSyncRequested(ctx context.Context, payload *events.UserSyncRequested) error {
	user, err := r.repo.FindUserByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logg.Warn(ctx, "sync requested for unknown user, dropped")
			return nil
		}
		return err
	}

	if r.producer == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "no producer configured")
	}
	return r.producer.PublishEvent(ctx, events.TopicUserDataSynced, events.UserDataSynced{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Phone:        user.Phone,
		PasswordHash: user.PasswordHash,
		Timestamp:    r.now().UTC(),
	})
}
