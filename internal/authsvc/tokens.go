package authsvc

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/db/models"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/security"
)

// RefreshTokenService issues, rotates and revokes opaque refresh
// tokens. Tokens are stored as SHA-256 digests; the raw secret leaves
// the process exactly once, in the issue response.
type RefreshTokenService struct {
	repo *Repository
	ttl  time.Duration
	now  func() time.Time
}

func NewRefreshTokenService(repo *Repository, cfg config.JWTConfig) *RefreshTokenService {
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &RefreshTokenService{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Issue mints a new refresh token for the user and returns the raw secret.
func (s *RefreshTokenService) Issue(ctx context.Context, userID int64) (string, error) {
	raw, err := security.GenerateRefreshToken()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue refresh token")
	}

	token := &models.RefreshToken{
		UserID:    userID,
		Token:     security.HashRefreshToken(raw),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.repo.CreateRefreshToken(ctx, token); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return raw, nil
}

// Exchange validates the raw token and rotates it: the presented token
// is revoked before a replacement is issued, so each secret works once.
func (s *RefreshTokenService) Exchange(ctx context.Context, raw string) (int64, string, error) {
	digest := security.HashRefreshToken(raw)

	stored, err := s.repo.FindRefreshToken(ctx, digest)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return 0, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refresh token")
	}

	now := s.now()
	if !stored.IsActive(now) {
		return 0, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh token expired or revoked")
	}

	if err := s.repo.RevokeRefreshToken(ctx, digest, now); err != nil {
		return 0, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke refresh token")
	}

	next, err := s.Issue(ctx, stored.UserID)
	if err != nil {
		return 0, "", err
	}
	return stored.UserID, next, nil
}

// Revoke invalidates a single raw token. Unknown tokens are a no-op so
// logout stays idempotent.
func (s *RefreshTokenService) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	if err := s.repo.RevokeRefreshToken(ctx, security.HashRefreshToken(raw), s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke refresh token")
	}
	return nil
}

// RevokeAllForUser invalidates every active session a user holds.
func (s *RefreshTokenService) RevokeAllForUser(ctx context.Context, userID int64) error {
	if err := s.repo.RevokeAllForUser(ctx, userID, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke user sessions")
	}
	return nil
}
