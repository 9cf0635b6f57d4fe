package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrust/ehr/pkg/types"
)

func testClaims() *types.UserClaims {
	return &types.UserClaims{
		UserID: "user-1",
		Name:   "dr.patel",
		Email:  "patel@hospital.example",
		Role:   types.RoleDoctor,
	}
}

func TestTokenManager_IssueAndValidate(t *testing.T) {
	tm := NewTokenManager("secret", "medtrust-test", time.Hour)

	token, err := tm.Issue(testClaims())
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	claims, err := tm.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "dr.patel", claims.Name)
	assert.Equal(t, types.RoleDoctor, claims.Role)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", "medtrust-test", time.Hour)
	validator := NewTokenManager("secret-b", "medtrust-test", time.Hour)

	token, err := issuer.Issue(testClaims())
	require.NoError(t, err)

	_, err = validator.Validate(token.AccessToken)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager("secret", "medtrust-test", time.Hour)

	// Sign a token whose lifetime already ended.
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		UserID: "user-1",
		Name:   "dr.patel",
		Role:   string(types.RoleDoctor),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "medtrust-test",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = tm.Validate(signed)
	assert.Error(t, err)
}

func TestTokenManager_ClampsNonPositiveTTL(t *testing.T) {
	tm := NewTokenManager("secret", "medtrust-test", -time.Minute)

	token, err := tm.Issue(testClaims())
	require.NoError(t, err)
	assert.Equal(t, int64((24*time.Hour).Seconds()), token.ExpiresIn)

	_, err = tm.Validate(token.AccessToken)
	assert.NoError(t, err)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	tm := NewTokenManager("secret", "medtrust-test", time.Hour)

	_, err := tm.Validate("not.a.token")
	assert.Error(t, err)

	_, err = tm.Validate("")
	assert.Error(t, err)
}
