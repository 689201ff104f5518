package authsvc

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/auth"
	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/db"
	"github.com/threadline/threadline-backend/pkg/db/models"
	"github.com/threadline/threadline-backend/pkg/enums"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/pagination"
	"github.com/threadline/threadline-backend/pkg/security"
)

type eventPublisher interface {
	PublishEvent(ctx context.Context, topic events.Topic, payload any) error
}

type identityStore interface {
	CreateUser(ctx context.Context, user *models.AuthUser) error
	FindUserByID(ctx context.Context, id int64) (*models.AuthUser, error)
	FindUserByEmail(ctx context.Context, email string) (*models.AuthUser, error)
	SaveUser(ctx context.Context, user *models.AuthUser) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	ListUsers(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.AuthUser, error)
}

type sessionManager interface {
	Issue(ctx context.Context, userID int64) (string, error)
	Exchange(ctx context.Context, raw string) (int64, string, error)
	Revoke(ctx context.Context, raw string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
}

// UserDTO is the external view of an identity record.
type UserDTO struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone,omitempty"`
	Role      enums.Role `json:"role"`
	IsBlocked bool       `json:"is_blocked"`
	CreatedAt time.Time  `json:"created_at"`
}

// AuthResult carries the outcome of login and refresh.
type AuthResult struct {
	User         UserDTO
	AccessToken  string
	RefreshToken string
}

// RegisterInput captures a registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// UsersPage is one cursor page of users.
type UsersPage struct {
	Users      []UserDTO `json:"users"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Service implements identity operations for the auth service.
type Service struct {
	repo     identityStore
	sessions sessionManager
	producer eventPublisher
	logg     *logger.Logger

	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

func NewService(repo identityStore, sessions sessionManager, producer eventPublisher, logg *logger.Logger, jwtCfg config.JWTConfig, passwordCfg config.PasswordConfig) *Service {
	return &Service{
		repo:        repo,
		sessions:    sessions,
		producer:    producer,
		logg:        logg,
		jwtCfg:      jwtCfg,
		passwordCfg: passwordCfg,
		now:         time.Now,
	}
}

// Register creates a new identity and announces it on the bus.
// Re-registering an existing email is a conflict.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*UserDTO, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.AuthUser{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(input.Name),
		Phone:        strings.TrimSpace(input.Phone),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "uq_auth_users_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	if err := s.publish(ctx, events.TopicUserRegistered, events.UserRegistered{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Phone:        user.Phone,
		PasswordHash: user.PasswordHash,
		Timestamp:    s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// Login verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if user.IsBlocked {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is blocked")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logg.Warn(ctx, "stamping last login failed: "+err.Error())
	}

	return s.openSession(ctx, user)
}

// Refresh rotates the presented refresh token and mints a new access token.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*AuthResult, error) {
	userID, nextToken, err := s.sessions.Exchange(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if user.IsBlocked {
		_ = s.sessions.RevokeAllForUser(ctx, user.ID)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is blocked")
	}

	access, err := s.mintAccessToken(user)
	if err != nil {
		return nil, err
	}

	dto := toUserDTO(user)
	return &AuthResult{User: dto, AccessToken: access, RefreshToken: nextToken}, nil
}

// Logout revokes the presented refresh token.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	return s.sessions.Revoke(ctx, rawToken)
}

// Me returns the caller's identity record.
func (s *Service) Me(ctx context.Context, userID int64) (*UserDTO, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	dto := toUserDTO(user)
	return &dto, nil
}

// ListUsers returns a cursor page of users for admin screens.
func (s *Service) ListUsers(ctx context.Context, params pagination.Params) (*UsersPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListUsers(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}

	page := &UsersPage{Users: make([]UserDTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:limit]
	}
	for i := range rows {
		page.Users = append(page.Users, toUserDTO(&rows[i]))
	}
	return page, nil
}

// SetBlocked blocks or unblocks a user. Blocking tears down every open
// session and fans the state change out to the other services.
func (s *Service) SetBlocked(ctx context.Context, userID int64, blocked bool, reason string) (*UserDTO, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if user.IsBlocked != blocked {
		user.IsBlocked = blocked
		if err := s.repo.SaveUser(ctx, user); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save user")
		}

		if blocked {
			if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
				return nil, err
			}
			if err := s.publish(ctx, events.TopicUserBlocked, events.UserBlocked{
				UserID:    user.ID,
				Reason:    reason,
				Timestamp: s.now().UTC(),
			}); err != nil {
				return nil, err
			}
		} else {
			if err := s.publish(ctx, events.TopicUserUnblocked, events.UserUnblocked{
				UserID:    user.ID,
				Timestamp: s.now().UTC(),
			}); err != nil {
				return nil, err
			}
		}
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// SetAdmin grants or revokes the admin role.
func (s *Service) SetAdmin(ctx context.Context, userID int64, admin bool) (*UserDTO, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if user.IsAdmin != admin {
		user.IsAdmin = admin
		if err := s.repo.SaveUser(ctx, user); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save user")
		}

		if admin {
			if err := s.publish(ctx, events.TopicUserAdminMade, events.UserAdminMade{
				UserID:    user.ID,
				Timestamp: s.now().UTC(),
			}); err != nil {
				return nil, err
			}
		} else {
			if err := s.publish(ctx, events.TopicUserAdminRemoved, events.UserAdminRemoved{
				UserID:    user.ID,
				Timestamp: s.now().UTC(),
			}); err != nil {
				return nil, err
			}
		}
	}

	dto := toUserDTO(user)
	return &dto, nil
}

func (s *Service) openSession(ctx context.Context, user *models.AuthUser) (*AuthResult, error) {
	access, err := s.mintAccessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	dto := toUserDTO(user)
	return &AuthResult{User: dto, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) mintAccessToken(user *models.AuthUser) (string, error) {
	access, err := auth.MintAccessToken(s.jwtCfg, s.now(), auth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   enums.RoleFor(user.IsAdmin),
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return access, nil
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

func toUserDTO(user *models.AuthUser) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Phone:     user.Phone,
		Role:      enums.RoleFor(user.IsAdmin),
		IsBlocked: user.IsBlocked,
		CreatedAt: user.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
