package interfaces

import (
	"context"

	"github.com/medtrust/ehr/pkg/types"
)

// UserStore is the subset of user persistence the auth service needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	InsertAccessLog(ctx context.Context, entry *types.AccessLogEntry) error
}

// SessionStore holds short-lived OTP login sessions. Implementations enforce
// TTL expiry and an attempt cap; callers never see ambient global state.
type SessionStore interface {
	Create(email, name, userID string, role types.UserRole, code string) (sessionID string)
	Verify(sessionID, code string) (*types.UserClaims, error)
	Refresh(sessionID, newCode string) (email, name string, err error)
	Stop()
}

// TokenManager issues and validates authentication tokens.
type TokenManager interface {
	Issue(claims *types.UserClaims) (*types.AuthToken, error)
	Validate(token string) (*types.UserClaims, error)
}

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	VerifyPassword(hashedPassword, password string) (bool, error)
}
