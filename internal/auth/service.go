package auth

import (
	"context"
	"strings"

	"github.com/medtrust/ehr/pkg/interfaces"
	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/monitoring"
	"github.com/medtrust/ehr/pkg/types"
)

// Service implements the two-step login flow: password check, then a
// one-time code delivered by mail, then a signed token.
type Service struct {
	users      interfaces.UserStore
	sessions   interfaces.SessionStore
	tokens     interfaces.TokenManager
	passwords  interfaces.PasswordVerifier
	notifier   interfaces.Notifier
	logger     *logger.Logger
	codeLength int
}

// NewService creates a new auth service
func NewService(
	users interfaces.UserStore,
	sessions interfaces.SessionStore,
	tokens interfaces.TokenManager,
	passwords interfaces.PasswordVerifier,
	notifier interfaces.Notifier,
	log *logger.Logger,
	codeLength int,
) *Service {
	if codeLength <= 0 {
		codeLength = 6
	}
	return &Service{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		passwords:  passwords,
		notifier:   notifier,
		logger:     log,
		codeLength: codeLength,
	}
}

// LoginResult is returned after a successful password check.
type LoginResult struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// VerifyResult is returned after a successful code check.
type VerifyResult struct {
	Token *types.AuthToken  `json:"token"`
	User  *types.UserClaims `json:"user"`
}

// Login verifies credentials and opens an OTP session. The caller learns
// only that credentials were wrong, never which half.
func (s *Service) Login(ctx context.Context, creds *types.Credentials) (*LoginResult, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		return nil, types.NewValidationError("credentials", "email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if _, ok := types.AsAppError(err); ok {
			s.logger.Security("login_unknown_email", email, nil)
			return nil, types.NewForbiddenError("invalid email or password")
		}
		return nil, err
	}

	if !user.IsActive {
		s.logger.Security("login_inactive_account", user.Name, nil)
		return nil, types.NewForbiddenError("invalid email or password")
	}

	ok, err := s.passwords.VerifyPassword(user.PasswordHash, creds.Password)
	if err != nil {
		return nil, types.NewDependencyError("password verification failed", err)
	}
	if !ok {
		s.logger.Security("login_bad_password", user.Name, nil)
		return nil, types.NewForbiddenError("invalid email or password")
	}

	code, err := GenerateOTP(s.codeLength)
	if err != nil {
		return nil, types.NewDependencyError("failed to generate verification code", err)
	}

	sessionID := s.sessions.Create(user.Email, user.Name, user.ID, user.Role, code)

	if err := s.notifier.SendOTPEmail(user.Email, user.Name, code); err != nil {
		monitoring.RecordNotification("otp", err)
		return nil, types.NewDependencyError("failed to deliver verification code", err)
	}
	monitoring.RecordNotification("otp", nil)

	s.logger.WithComponent("auth_service").WithField("actor", user.Name).Info("OTP session opened")

	return &LoginResult{
		SessionID: sessionID,
		Message:   "Verification code sent to your email",
	}, nil
}

// AdminLogin issues a token directly from credentials, skipping the OTP
// step. Only admin accounts may use this path; everyone else goes through
// the two-step flow.
func (s *Service) AdminLogin(ctx context.Context, creds *types.Credentials) (*VerifyResult, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		return nil, types.NewValidationError("credentials", "email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if _, ok := types.AsAppError(err); ok {
			return nil, types.NewForbiddenError("invalid email or password")
		}
		return nil, err
	}

	if user.Role != types.RoleAdmin {
		s.logger.Security("admin_login_wrong_role", user.Name, map[string]interface{}{
			"role": user.Role,
		})
		return nil, types.NewForbiddenError("invalid email or password")
	}
	if !user.IsActive {
		return nil, types.NewForbiddenError("invalid email or password")
	}

	ok, err := s.passwords.VerifyPassword(user.PasswordHash, creds.Password)
	if err != nil {
		return nil, types.NewDependencyError("password verification failed", err)
	}
	if !ok {
		s.logger.Security("admin_login_bad_password", user.Name, nil)
		return nil, types.NewForbiddenError("invalid email or password")
	}

	claims := &types.UserClaims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
	}
	token, err := s.tokens.Issue(claims)
	if err != nil {
		return nil, types.NewDependencyError("failed to issue token", err)
	}

	entry := &types.AccessLogEntry{
		ActorName: user.Name,
		Role:      user.Role,
		Action:    types.ActionLogin,
		Status:    types.LogStatusSuccess,
	}
	if err := s.users.InsertAccessLog(ctx, entry); err != nil {
		s.logger.WithComponent("auth_service").WithError(err).Error("Failed to append login audit row")
	}

	return &VerifyResult{Token: token, User: claims}, nil
}

// VerifyOTP completes the login: checks the code, issues a token and
// appends the LOGIN audit row that feeds the trust engine.
func (s *Service) VerifyOTP(ctx context.Context, sessionID, code string) (*VerifyResult, error) {
	if sessionID == "" || code == "" {
		return nil, types.NewValidationError("otp", "session_id and code are required")
	}

	claims, err := s.sessions.Verify(sessionID, code)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(claims)
	if err != nil {
		return nil, types.NewDependencyError("failed to issue token", err)
	}

	entry := &types.AccessLogEntry{
		ActorName: claims.Name,
		Role:      claims.Role,
		Action:    types.ActionLogin,
		Status:    types.LogStatusSuccess,
	}
	if err := s.users.InsertAccessLog(ctx, entry); err != nil {
		s.logger.WithComponent("auth_service").WithError(err).Error("Failed to append login audit row")
	}

	s.logger.Audit(claims.Name, types.ActionLogin, "", types.LogStatusSuccess, map[string]interface{}{
		"role": claims.Role,
	})

	return &VerifyResult{Token: token, User: claims}, nil
}

// ResendOTP issues a fresh code for an open session.
func (s *Service) ResendOTP(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return types.NewValidationError("session_id", "session_id is required")
	}

	code, err := GenerateOTP(s.codeLength)
	if err != nil {
		return types.NewDependencyError("failed to generate verification code", err)
	}

	email, name, err := s.sessions.Refresh(sessionID, code)
	if err != nil {
		return err
	}

	if err := s.notifier.SendOTPEmail(email, name, code); err != nil {
		monitoring.RecordNotification("otp", err)
		return types.NewDependencyError("failed to deliver verification code", err)
	}
	monitoring.RecordNotification("otp", nil)

	return nil
}
