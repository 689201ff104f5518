package usersvc

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/security"
)

type eventPublisher interface {
	PublishEvent(ctx context.Context, topic events.Topic, payload any) error
}

type profileStore interface {
	FindProfile(ctx context.Context, userID int64) (*models.UserProfile, error)
	UpsertProfile(ctx context.Context, profile *models.UserProfile) error
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
}

type addressStore interface {
	CreateAddress(ctx context.Context, address *models.Address) error
	FindAddress(ctx context.Context, id, userID int64) (*models.Address, error)
	ListAddresses(ctx context.Context, userID int64) ([]models.Address, error)
	SaveAddress(ctx context.Context, address *models.Address) error
	DeleteAddress(ctx context.Context, id, userID int64) (bool, error)
	ClearDefaultAddress(ctx context.Context, userID int64) error
}

// ProfileDTO is the external view of a user profile.
type ProfileDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Pending   bool      `json:"pending,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateProfileInput is a partial patch; nil fields stay untouched.
type UpdateProfileInput struct {
	Name  *string
	Email *string
	Phone *string
}

// Service implements profile operations for the user service.
type Service struct {
	repo      profileStore
	addresses addressStore
	producer  eventPublisher
	logg      *logger.Logger

	passwordCfg config.PasswordConfig
	now         func() time.Time
}

func NewService(repo profileStore, addresses addressStore, producer eventPublisher, logg *logger.Logger, passwordCfg config.PasswordConfig) *Service {
	return &Service{
		repo:        repo,
		addresses:   addresses,
		producer:    producer,
		logg:        logg,
		passwordCfg: passwordCfg,
		now:         time.Now,
	}
}

// GetProfile returns the caller's profile. A replica that exists but is
// still blank triggers a sync request on the bus so the identity owner
// can re-publish its snapshot. A row that has not replicated at all
// reads as not found; reads never write.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*ProfileDTO, error) {
	profile, err := s.repo.FindProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	if profile.IsBlank() {
		s.requestSync(ctx, userID)
	}

	dto := toProfileDTO(profile)
	return &dto, nil
}

// UpdateProfile applies a partial patch and fans it out. A profile that
// has not replicated yet is bootstrapped in place.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, input UpdateProfileInput) (*ProfileDTO, error) {
	if input.Name == nil && input.Email == nil && input.Phone == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
	}
	if input.Email != nil && strings.TrimSpace(*input.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email cannot be blank")
	}

	profile, err := s.repo.FindProfile(ctx, userID)
	created := false
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
		}
		profile = &models.UserProfile{ID: userID}
		created = true
	}

	if input.Name != nil {
		profile.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		profile.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Phone != nil {
		profile.Phone = strings.TrimSpace(*input.Phone)
	}

	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save profile")
	}

	if created {
		if err := s.publish(ctx, events.TopicUserProfileCreated, events.UserProfileCreated{
			UserID:       profile.ID,
			Email:        profile.Email,
			Name:         profile.Name,
			Phone:        profile.Phone,
			PasswordHash: profile.PasswordHash,
			Timestamp:    s.now().UTC(),
		}); err != nil {
			return nil, err
		}
		s.requestSync(ctx, userID)
	} else {
		if err := s.publish(ctx, events.TopicUserProfileUpdated, events.UserProfileUpdated{
			UserID:    profile.ID,
			Name:      input.Name,
			Email:     input.Email,
			Phone:     input.Phone,
			Timestamp: s.now().UTC(),
		}); err != nil {
			return nil, err
		}
	}

	dto := toProfileDTO(profile)
	return &dto, nil
}

// ChangePassword replaces the credential hash and fans it out. The old
// password is only verified when a cached hash is present; a blank
// cache means replication has not caught up and verification is
// impossible here.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "new password is required")
	}

	profile, err := s.repo.FindProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	if profile.PasswordHash != "" {
		ok, err := security.VerifyPassword(oldPassword, profile.PasswordHash)
		if err != nil || !ok {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password is incorrect")
		}
	} else {
		s.logg.Warn(ctx, "changing password without verification, cached hash is blank")
		s.requestSync(ctx, userID)
	}

	hash, err := security.HashPassword(newPassword, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	profile.PasswordHash = hash
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save profile")
	}

	return s.publish(ctx, events.TopicUserPasswordChanged, events.UserPasswordChanged{
		UserID:       userID,
		PasswordHash: hash,
		Timestamp:    s.now().UTC(),
	})
}

// requestSync asks the identity owner to re-publish its snapshot. Best
// effort: a failed request only delays the next self-heal attempt.
func (s *Service) requestSync(ctx context.Context, userID int64) {
	_ = s.publish(ctx, events.TopicUserSyncRequested, events.UserSyncRequested{
		UserID:    userID,
		Requester: "user-service",
		Timestamp: s.now().UTC(),
	})
}

// publish fans an event out and surfaces a failed publish to the
// caller. The local write that preceded it stays committed; the two are
// not transactional.
func (s *Service) publish(ctx context.Context, topic events.Topic, payload any) error {
	if s.producer == nil {
		return nil
	}
	if err := s.producer.PublishEvent(ctx, topic, payload); err != nil {
		s.logg.Error(s.logg.WithTopic(ctx, topic.String()), "event publish failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish "+topic.String())
	}
	return nil
}

func toProfileDTO(profile *models.UserProfile) ProfileDTO {
	return ProfileDTO{
		ID:        profile.ID,
		Name:      profile.Name,
		Email:     profile.Email,
		Phone:     profile.Phone,
		Pending:   profile.IsBlank(),
		CreatedAt: profile.CreatedAt,
	}
}
