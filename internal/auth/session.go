package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/types"
)

// otpSession is one pending two-step login.
type otpSession struct {
	claims    types.UserClaims
	code      string
	attempts  int
	expiresAt time.Time
}

// SessionManager holds in-memory OTP login sessions. Sessions expire after
// the configured TTL and are consumed after too many failed attempts.
type SessionManager struct {
	sessions    map[string]*otpSession
	mutex       sync.RWMutex
	ttl         time.Duration
	maxAttempts int
	logger      *logger.Logger
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewSessionManager creates a session manager and starts its eviction loop.
func NewSessionManager(ttl time.Duration, maxAttempts int, log *logger.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	sm := &SessionManager{
		sessions:    make(map[string]*otpSession),
		ttl:         ttl,
		maxAttempts: maxAttempts,
		logger:      log,
		stopChan:    make(chan struct{}),
	}

	go sm.cleanupRoutine()

	return sm
}

// Create opens a new OTP session and returns its opaque identifier.
func (sm *SessionManager) Create(email, name, userID string, role types.UserRole, code string) string {
	sessionID := uuid.New().String()

	sm.mutex.Lock()
	sm.sessions[sessionID] = &otpSession{
		claims: types.UserClaims{
			UserID: userID,
			Name:   name,
			Email:  email,
			Role:   role,
		},
		code:      code,
		expiresAt: time.Now().Add(sm.ttl),
	}
	sm.mutex.Unlock()

	return sessionID
}

// Verify checks the submitted code. On success the session is consumed and
// the login claims are returned. Expired sessions and exhausted attempt
// budgets also consume the session.
func (sm *SessionManager) Verify(sessionID, code string) (*types.UserClaims, error) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, types.NewNotFoundError("login session")
	}

	if time.Now().After(session.expiresAt) {
		delete(sm.sessions, sessionID)
		return nil, types.NewValidationError("session", "login session expired, please log in again")
	}

	if session.code != code {
		session.attempts++
		if session.attempts >= sm.maxAttempts {
			delete(sm.sessions, sessionID)
			sm.logger.Security("otp_attempts_exhausted", session.claims.Name, map[string]interface{}{
				"email": session.claims.Email,
			})
			return nil, types.NewForbiddenError("too many failed attempts, please log in again")
		}
		return nil, types.NewValidationError("otp", "incorrect verification code")
	}

	claims := session.claims
	delete(sm.sessions, sessionID)
	return &claims, nil
}

// Refresh replaces the session's code and resets its clock and attempt
// budget. Returns the recipient so the caller can resend the mail.
func (sm *SessionManager) Refresh(sessionID, newCode string) (string, string, error) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return "", "", types.NewNotFoundError("login session")
	}

	session.code = newCode
	session.attempts = 0
	session.expiresAt = time.Now().Add(sm.ttl)

	return session.claims.Email, session.claims.Name, nil
}

// Stop terminates the eviction loop.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// cleanupRoutine periodically evicts expired sessions.
func (sm *SessionManager) cleanupRoutine() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.evictExpired()
		case <-sm.stopChan:
			return
		}
	}
}

func (sm *SessionManager) evictExpired() {
	now := time.Now()

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for id, session := range sm.sessions {
		if now.After(session.expiresAt) {
			delete(sm.sessions, id)
		}
	}
}

// GenerateOTP produces a zero-padded numeric code of the given length.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n), nil
}
