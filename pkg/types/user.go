package types

import "time"

// UserRole represents the different user roles in the system
type UserRole string

const (
	RoleDoctor  UserRole = "doctor"
	RoleNurse   UserRole = "nurse"
	RolePatient UserRole = "patient"
	RoleAdmin   UserRole = "admin"
)

// DefaultTrustScore is the systemic baseline every recomputation starts from.
const DefaultTrustScore = 50

// User represents a system user
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	TrustScore   int       `json:"trust_score" db:"trust_score"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// IsClinical reports whether the role belongs to clinical staff eligible
// for break-glass access.
func (r UserRole) IsClinical() bool {
	return r == RoleDoctor || r == RoleNurse
}

// UserClaims represents JWT token claims
type UserClaims struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
}

// Credentials represents user login credentials
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthToken represents an issued authentication token
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// TrustLevel maps a 0-100 trust score to its dashboard label.
func TrustLevel(score int) string {
	switch {
	case score >= 80:
		return "Very High"
	case score >= 60:
		return "High"
	case score >= 40:
		return "Medium"
	case score >= 20:
		return "Low"
	default:
		return "Very Low"
	}
}
