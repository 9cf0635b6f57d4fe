package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptVerifier(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	v := NewBcryptVerifier()

	ok, err := v.VerifyPassword(hash, "correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.VerifyPassword(hash, "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptVerifier_MalformedHash(t *testing.T) {
	v := NewBcryptVerifier()

	_, err := v.VerifyPassword("not-a-bcrypt-hash", "anything")
	assert.Error(t, err)
}
