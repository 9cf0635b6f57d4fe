package access

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medtrust/ehr/pkg/interfaces"
	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/monitoring"
	"github.com/medtrust/ehr/pkg/types"
)

// Service orchestrates access requests: policy evaluation, record and audit
// writes, then asynchronous trust recomputation and notification fan-out.
// The fan-out never delays or fails the caller-facing decision.
type Service struct {
	repo          interfaces.AccessRepository
	notifier      interfaces.Notifier
	trust         interfaces.TrustRecalculator
	logger        *logger.Logger
	adminEmail    string
	recalcTimeout time.Duration

	// background tracks fire-and-forget work so shutdown can drain it.
	background sync.WaitGroup
}

// NewService creates a new access service
func NewService(
	repo interfaces.AccessRepository,
	notifier interfaces.Notifier,
	trust interfaces.TrustRecalculator,
	log *logger.Logger,
	adminEmail string,
	recalcTimeout time.Duration,
) *Service {
	if recalcTimeout <= 0 {
		recalcTimeout = 10 * time.Second
	}
	return &Service{
		repo:          repo,
		notifier:      notifier,
		trust:         trust,
		logger:        log,
		adminEmail:    adminEmail,
		recalcTimeout: recalcTimeout,
	}
}

// SubmitRequest is the request body shared by the access endpoints.
type SubmitRequest struct {
	Name          string `json:"name"`
	Role          string `json:"role"`
	PatientName   string `json:"patient_name"`
	Justification string `json:"justification,omitempty"`
	IPAddress     string `json:"-"`
}

// SubmitResponse is the caller-facing result of an access attempt.
type SubmitResponse struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message"`
	PatientData map[string]interface{} `json:"patient_data"`
	RequestID   string                 `json:"request_id,omitempty"`
}

// NormalAccess handles an in-network access attempt. On success the
// patient snapshot is returned directly.
func (s *Service) NormalAccess(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	if err := validateSubmit(req, false); err != nil {
		return nil, err
	}

	decision, err := Evaluate(&PolicyRequest{
		ActorName:  req.Name,
		Role:       types.UserRole(req.Role),
		AccessType: types.AccessTypeNormal,
		IPAddress:  req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	if !decision.Allowed {
		s.recordDecision(ctx, req, decision, "")
		monitoring.RecordAccessDecision(string(types.AccessTypeNormal), "denied")
		return nil, types.NewForbiddenError(decision.Reason)
	}

	patient, err := s.repo.GetPatientByName(ctx, req.PatientName)
	if err != nil {
		return nil, err
	}

	s.recordDecision(ctx, req, decision, patient.ID)
	monitoring.RecordAccessDecision(string(types.AccessTypeNormal), "granted")

	return &SubmitResponse{
		Success:     true,
		Message:     "Patient data accessed",
		PatientData: patient.Snapshot(),
	}, nil
}

// RestrictedAccess handles an out-of-network access attempt. It never
// returns patient data: it opens a pending request for an admin to resolve.
func (s *Service) RestrictedAccess(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	if err := validateSubmit(req, true); err != nil {
		return nil, err
	}

	decision, err := Evaluate(&PolicyRequest{
		ActorName:     req.Name,
		Role:          types.UserRole(req.Role),
		AccessType:    types.AccessTypeRestricted,
		Justification: req.Justification,
		IPAddress:     req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	if !decision.Allowed {
		s.recordDecision(ctx, req, decision, "")
		monitoring.RecordAccessDecision(string(types.AccessTypeRestricted), "denied")
		return nil, types.NewForbiddenError(decision.Reason)
	}

	patient, err := s.repo.GetPatientByName(ctx, req.PatientName)
	if err != nil {
		return nil, err
	}

	accessReq := &types.AccessRequest{
		ID:          uuid.New().String(),
		PatientID:   patient.ID,
		RequesterID: req.Name,
		Role:        types.UserRole(req.Role),
		AccessType:  types.AccessTypeRestricted,
		Reason:      req.Justification,
	}
	if err := s.repo.CreateAccessRequest(ctx, accessReq); err != nil {
		return nil, types.NewDependencyError("failed to open access request", err)
	}

	s.recordDecision(ctx, req, decision, patient.ID)
	monitoring.RecordAccessDecision(string(types.AccessTypeRestricted), "pending")

	s.runAsync(func() {
		if err := s.notifier.SendNewRequestNotification(s.adminEmail, req.Name, patient.Name, req.Justification); err != nil {
			s.logger.WithComponent("access_service").WithError(err).Warn("Failed to notify admin of new request")
		}
		monitoring.RecordNotification("new_request", nil)
	})

	return &SubmitResponse{
		Success:     true,
		Message:     "Access request submitted for admin approval",
		PatientData: nil,
		RequestID:   accessReq.ID,
	}, nil
}

// EmergencyAccess handles a break-glass request. The grant, its record and
// its audit row are the primary effect; the admin alert and trust
// recomputation are scheduled afterwards and must never block the grant.
func (s *Service) EmergencyAccess(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	if err := validateSubmit(req, true); err != nil {
		return nil, err
	}

	decision, err := Evaluate(&PolicyRequest{
		ActorName:     req.Name,
		Role:          types.UserRole(req.Role),
		AccessType:    types.AccessTypeEmergency,
		Justification: req.Justification,
		IPAddress:     req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	if !decision.Allowed {
		s.recordDecision(ctx, req, decision, "")
		monitoring.RecordAccessDecision(string(types.AccessTypeEmergency), "denied")
		return nil, types.NewForbiddenError(decision.Reason)
	}

	patient, err := s.repo.GetPatientByName(ctx, req.PatientName)
	if err != nil {
		return nil, err
	}

	grant := &types.EmergencyAccess{
		PatientID: patient.ID,
		GrantedBy: req.Name,
		Reason:    req.Justification,
	}
	if err := s.repo.CreateEmergencyAccess(ctx, grant); err != nil {
		return nil, types.NewDependencyError("failed to record emergency access", err)
	}

	s.recordDecision(ctx, req, decision, patient.ID)
	monitoring.RecordAccessDecision(string(types.AccessTypeEmergency), "granted")
	monitoring.RecordEmergencyGrant()

	// The admin alert is mandatory and always attempted; a delivery
	// failure is logged but the grant stands.
	s.runAsync(func() {
		err := s.notifier.SendEmergencyAlert(s.adminEmail, req.Name, patient.Name, req.Justification)
		monitoring.RecordNotification("emergency_alert", err)
		if err != nil {
			s.logger.Security("emergency_alert_failed", req.Name, map[string]interface{}{
				"patient": patient.Name,
				"error":   err.Error(),
			})
		}
	})

	return &SubmitResponse{
		Success:     true,
		Message:     "Emergency access granted",
		PatientData: patient.Snapshot(),
	}, nil
}

// TempAccess handles a nurse's short in-network grant.
func (s *Service) TempAccess(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	if err := validateSubmit(req, false); err != nil {
		return nil, err
	}

	decision, err := Evaluate(&PolicyRequest{
		ActorName:  req.Name,
		Role:       types.UserRole(req.Role),
		AccessType: types.AccessTypeTemp,
		IPAddress:  req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	if !decision.Allowed {
		s.recordDecision(ctx, req, decision, "")
		monitoring.RecordAccessDecision(string(types.AccessTypeTemp), "denied")
		return nil, types.NewForbiddenError(decision.Reason)
	}

	patient, err := s.repo.GetPatientByName(ctx, req.PatientName)
	if err != nil {
		return nil, err
	}

	s.recordDecision(ctx, req, decision, patient.ID)
	monitoring.RecordAccessDecision(string(types.AccessTypeTemp), "granted")

	return &SubmitResponse{
		Success:     true,
		Message:     "Temporary access granted for 30 minutes",
		PatientData: patient.Snapshot(),
	}, nil
}

// ApproveRequest transitions a pending request to approved.
func (s *Service) ApproveRequest(ctx context.Context, requestID, adminName string) (*types.AccessRequest, error) {
	req, err := s.repo.GetAccessRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != types.RequestStatusPending {
		return nil, types.NewStateError("access request is no longer pending")
	}

	now := time.Now()
	req.Status = types.RequestStatusApproved
	req.ApprovedBy = adminName
	req.ApprovedAt = &now

	if err := s.repo.UpdateAccessRequestStatus(ctx, req); err != nil {
		return nil, err
	}

	s.notifyRequester(req, true, "")
	return req, nil
}

// DenyRequest transitions a pending request to denied.
func (s *Service) DenyRequest(ctx context.Context, requestID, adminName, reason string) (*types.AccessRequest, error) {
	req, err := s.repo.GetAccessRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != types.RequestStatusPending {
		return nil, types.NewStateError("access request is no longer pending")
	}

	now := time.Now()
	req.Status = types.RequestStatusDenied
	req.DeniedBy = adminName
	req.DeniedAt = &now
	req.DenialReason = reason

	if err := s.repo.UpdateAccessRequestStatus(ctx, req); err != nil {
		return nil, err
	}

	s.notifyRequester(req, false, reason)
	return req, nil
}

// TrustScore returns the stored score and display level for an actor.
func (s *Service) TrustScore(ctx context.Context, name string) (int, string, error) {
	user, err := s.repo.GetUserByName(ctx, name)
	if err != nil {
		return 0, "", err
	}
	return user.TrustScore, types.TrustLevel(user.TrustScore), nil
}

// HasAccess reports whether the user holds an active approved request for
// the patient.
func (s *Service) HasAccess(ctx context.Context, patientID, userID string) (bool, error) {
	return s.repo.HasApprovedAccess(ctx, patientID, userID)
}

// RequestsForPatient lists all access requests filed against a patient.
func (s *Service) RequestsForPatient(ctx context.Context, patientID string) ([]*types.AccessRequest, error) {
	return s.repo.GetAccessRequestsByPatient(ctx, patientID)
}

// PendingRequests lists requests awaiting an admin decision.
func (s *Service) PendingRequests(ctx context.Context) ([]*types.AccessRequest, error) {
	return s.repo.GetPendingAccessRequests(ctx)
}

// AccessLogs returns filtered audit entries, newest first.
func (s *Service) AccessLogs(ctx context.Context, filter *types.AccessLogFilter) ([]*types.AccessLogEntry, error) {
	return s.repo.GetAccessLogs(ctx, filter)
}

// Drain waits for in-flight background work. Called on shutdown.
func (s *Service) Drain() {
	s.background.Wait()
}

// recordDecision appends the audit row and schedules trust recomputation.
// Audit persistence failures are logged, never surfaced: by the time this
// runs the primary effect of the request has already been decided.
func (s *Service) recordDecision(ctx context.Context, req *SubmitRequest, decision *types.AccessDecision, patientID string) {
	entry := &types.AccessLogEntry{
		ActorName:     req.Name,
		Role:          types.UserRole(req.Role),
		PatientID:     patientID,
		Action:        decision.LogAction,
		Justification: req.Justification,
		IPAddress:     req.IPAddress,
		Status:        decision.LogStatus,
	}
	if patientID == "" {
		entry.PatientID = req.PatientName
	}

	if err := s.repo.InsertAccessLog(ctx, entry); err != nil {
		s.logger.WithComponent("access_service").WithError(err).Error("Failed to append audit log")
	} else {
		s.logger.Audit(req.Name, decision.LogAction, entry.PatientID, decision.LogStatus, map[string]interface{}{
			"ip": req.IPAddress,
		})
	}

	s.scheduleTrustRecalc(req.Name)
}

// scheduleTrustRecalc fires an asynchronous recomputation for the actor.
// Failures are logged and retried implicitly on the next triggering event.
func (s *Service) scheduleTrustRecalc(actorName string) {
	s.runAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.recalcTimeout)
		defer cancel()

		if _, err := s.trust.Recalculate(ctx, actorName); err != nil {
			s.logger.WithComponent("access_service").WithError(err).
				WithField("actor", actorName).Warn("Trust recalculation failed")
		}
	})
}

func (s *Service) notifyRequester(req *types.AccessRequest, approved bool, reason string) {
	s.runAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.recalcTimeout)
		defer cancel()

		user, err := s.repo.GetUserByName(ctx, req.RequesterID)
		if err != nil {
			s.logger.WithComponent("access_service").WithError(err).Warn("Requester lookup failed for notification")
			return
		}

		if approved {
			err = s.notifier.SendAccessApproved(user.Email, req.RequesterID, req.PatientID)
			monitoring.RecordNotification("access_approved", err)
		} else {
			err = s.notifier.SendAccessDenied(user.Email, req.RequesterID, req.PatientID, reason)
			monitoring.RecordNotification("access_denied", err)
		}
		if err != nil {
			s.logger.WithComponent("access_service").WithError(err).Warn("Requester notification failed")
		}
	})
}

func (s *Service) runAsync(fn func()) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		fn()
	}()
}

func validateSubmit(req *SubmitRequest, needJustification bool) error {
	if strings.TrimSpace(req.Name) == "" {
		return types.NewValidationError("name", "name is required")
	}
	if strings.TrimSpace(req.Role) == "" {
		return types.NewValidationError("role", "role is required")
	}
	if strings.TrimSpace(req.PatientName) == "" {
		return types.NewValidationError("patient_name", "patient_name is required")
	}
	if needJustification && strings.TrimSpace(req.Justification) == "" {
		return types.NewValidationError("justification", "justification is required")
	}
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.Justification = strings.TrimSpace(req.Justification)
	return nil
}
