package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/types"
)

func newTestSessionManager(t *testing.T, ttl time.Duration, maxAttempts int) *SessionManager {
	sm := NewSessionManager(ttl, maxAttempts, logger.New("error"))
	t.Cleanup(sm.Stop)
	return sm
}

func TestSessionManager_VerifyConsumesSession(t *testing.T) {
	sm := newTestSessionManager(t, time.Minute, 3)

	id := sm.Create("patel@hospital.example", "dr.patel", "user-1", types.RoleDoctor, "123456")

	claims, err := sm.Verify(id, "123456")
	require.NoError(t, err)
	assert.Equal(t, "dr.patel", claims.Name)
	assert.Equal(t, types.RoleDoctor, claims.Role)

	// The session is single-use.
	_, err = sm.Verify(id, "123456")
	assert.Error(t, err)
}

func TestSessionManager_WrongCode(t *testing.T) {
	sm := newTestSessionManager(t, time.Minute, 3)

	id := sm.Create("patel@hospital.example", "dr.patel", "user-1", types.RoleDoctor, "123456")

	_, err := sm.Verify(id, "000000")
	require.Error(t, err)

	// The right code still works while attempts remain.
	claims, err := sm.Verify(id, "123456")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestSessionManager_AttemptCapConsumesSession(t *testing.T) {
	sm := newTestSessionManager(t, time.Minute, 3)

	id := sm.Create("patel@hospital.example", "dr.patel", "user-1", types.RoleDoctor, "123456")

	for i := 0; i < 3; i++ {
		_, err := sm.Verify(id, "000000")
		require.Error(t, err)
	}

	// Even the correct code fails now; the session is gone.
	_, err := sm.Verify(id, "123456")
	require.Error(t, err)
	appErr, ok := types.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeNotFound, appErr.Type)
}

func TestSessionManager_ExpiredSession(t *testing.T) {
	sm := newTestSessionManager(t, time.Millisecond, 3)

	id := sm.Create("patel@hospital.example", "dr.patel", "user-1", types.RoleDoctor, "123456")
	time.Sleep(5 * time.Millisecond)

	_, err := sm.Verify(id, "123456")
	assert.Error(t, err)
}

func TestSessionManager_RefreshResetsAttempts(t *testing.T) {
	sm := newTestSessionManager(t, time.Minute, 3)

	id := sm.Create("patel@hospital.example", "dr.patel", "user-1", types.RoleDoctor, "123456")

	_, err := sm.Verify(id, "000000")
	require.Error(t, err)
	_, err = sm.Verify(id, "000000")
	require.Error(t, err)

	email, name, err := sm.Refresh(id, "654321")
	require.NoError(t, err)
	assert.Equal(t, "patel@hospital.example", email)
	assert.Equal(t, "dr.patel", name)

	// Old code no longer works, new one does, attempts start over.
	_, err = sm.Verify(id, "123456")
	require.Error(t, err)
	claims, err := sm.Verify(id, "654321")
	require.NoError(t, err)
	assert.Equal(t, "dr.patel", claims.Name)
}

func TestSessionManager_RefreshUnknownSession(t *testing.T) {
	sm := newTestSessionManager(t, time.Minute, 3)

	_, _, err := sm.Refresh("no-such-session", "654321")
	assert.Error(t, err)
}

func TestGenerateOTP(t *testing.T) {
	code, err := GenerateOTP(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9')
	}

	// Non-positive lengths fall back to six digits.
	code, err = GenerateOTP(0)
	require.NoError(t, err)
	assert.Len(t, code, 6)
}
