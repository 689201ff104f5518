package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/threadline/threadline-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID int64
	Email  string
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients. The
// same claim shape is validated by every service, so the signing
// secret must be shared across them.
type AccessTokenClaims struct {
	UserID int64      `json:"user_id"`
	Email  string     `json:"email"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) IsAdmin() bool {
	return c.Role == enums.RoleAdmin
}
