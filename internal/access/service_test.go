package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/types"
)

// MockAccessRepository is a mock implementation of AccessRepository
type MockAccessRepository struct {
	mock.Mock
}

func (m *MockAccessRepository) GetPatientByName(ctx context.Context, name string) (*types.Patient, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Patient), args.Error(1)
}

func (m *MockAccessRepository) GetPatientByID(ctx context.Context, id string) (*types.Patient, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Patient), args.Error(1)
}

func (m *MockAccessRepository) CreateAccessRequest(ctx context.Context, req *types.AccessRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockAccessRepository) GetAccessRequestByID(ctx context.Context, id string) (*types.AccessRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.AccessRequest), args.Error(1)
}

func (m *MockAccessRepository) UpdateAccessRequestStatus(ctx context.Context, req *types.AccessRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockAccessRepository) GetAccessRequestsByPatient(ctx context.Context, patientID string) ([]*types.AccessRequest, error) {
	args := m.Called(ctx, patientID)
	return args.Get(0).([]*types.AccessRequest), args.Error(1)
}

func (m *MockAccessRepository) GetPendingAccessRequests(ctx context.Context) ([]*types.AccessRequest, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*types.AccessRequest), args.Error(1)
}

func (m *MockAccessRepository) HasApprovedAccess(ctx context.Context, patientID, requesterID string) (bool, error) {
	args := m.Called(ctx, patientID, requesterID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccessRepository) CreateEmergencyAccess(ctx context.Context, ea *types.EmergencyAccess) error {
	args := m.Called(ctx, ea)
	return args.Error(0)
}

func (m *MockAccessRepository) InsertAccessLog(ctx context.Context, entry *types.AccessLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAccessRepository) GetAccessLogs(ctx context.Context, filter *types.AccessLogFilter) ([]*types.AccessLogEntry, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*types.AccessLogEntry), args.Error(1)
}

func (m *MockAccessRepository) GetRecentLogsByActor(ctx context.Context, actorName string, limit int) ([]*types.AccessLogEntry, error) {
	args := m.Called(ctx, actorName, limit)
	return args.Get(0).([]*types.AccessLogEntry), args.Error(1)
}

func (m *MockAccessRepository) GetUserByName(ctx context.Context, name string) (*types.User, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAccessRepository) UpdateTrustScore(ctx context.Context, actorName string, score int) error {
	args := m.Called(ctx, actorName, score)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendAccessApproved(to, requesterName, patientName string) error {
	args := m.Called(to, requesterName, patientName)
	return args.Error(0)
}

func (m *MockNotifier) SendAccessDenied(to, requesterName, patientName, reason string) error {
	args := m.Called(to, requesterName, patientName, reason)
	return args.Error(0)
}

func (m *MockNotifier) SendEmergencyAlert(adminEmail, actorName, patientName, justification string) error {
	args := m.Called(adminEmail, actorName, patientName, justification)
	return args.Error(0)
}

func (m *MockNotifier) SendNewRequestNotification(adminEmail, requesterName, patientName, reason string) error {
	args := m.Called(adminEmail, requesterName, patientName, reason)
	return args.Error(0)
}

func (m *MockNotifier) SendOTPEmail(to, name, code string) error {
	args := m.Called(to, name, code)
	return args.Error(0)
}

// MockTrustRecalculator is a mock implementation of TrustRecalculator
type MockTrustRecalculator struct {
	mock.Mock
}

func (m *MockTrustRecalculator) Recalculate(ctx context.Context, actorName string) (int, error) {
	args := m.Called(ctx, actorName)
	return args.Int(0), args.Error(1)
}

func setupTestService() (*Service, *MockAccessRepository, *MockNotifier, *MockTrustRecalculator) {
	repo := &MockAccessRepository{}
	notifier := &MockNotifier{}
	trust := &MockTrustRecalculator{}
	svc := NewService(repo, notifier, trust, logger.New("error"), "admin@medtrust.local", time.Second)
	return svc, repo, notifier, trust
}

func testPatient() *types.Patient {
	return &types.Patient{
		ID:        "patient-1",
		Name:      "John Smith",
		Age:       54,
		Diagnosis: "Hypertension",
	}
}

func TestNormalAccess_InsideNetwork(t *testing.T) {
	svc, repo, _, trust := setupTestService()

	repo.On("GetPatientByName", mock.Anything, "John Smith").Return(testPatient(), nil)
	repo.On("InsertAccessLog", mock.Anything, mock.AnythingOfType("*types.AccessLogEntry")).Return(nil)
	trust.On("Recalculate", mock.Anything, "dr.patel").Return(55, nil)

	resp, err := svc.NormalAccess(context.Background(), &SubmitRequest{
		Name:        "dr.patel",
		Role:        "doctor",
		PatientName: "John Smith",
		IPAddress:   insideIP,
	})
	svc.Drain()

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "John Smith", resp.PatientData["name"])
	repo.AssertExpectations(t)
	trust.AssertExpectations(t)
}

func TestNormalAccess_OutsideNetworkDenied(t *testing.T) {
	svc, repo, _, trust := setupTestService()

	repo.On("InsertAccessLog", mock.Anything, mock.MatchedBy(func(e *types.AccessLogEntry) bool {
		return e.Status == types.LogStatusDenied && e.Action == types.ActionNormalAccess
	})).Return(nil)
	trust.On("Recalculate", mock.Anything, "dr.patel").Return(40, nil)

	_, err := svc.NormalAccess(context.Background(), &SubmitRequest{
		Name:        "dr.patel",
		Role:        "doctor",
		PatientName: "John Smith",
		IPAddress:   outsideIP,
	})
	svc.Drain()

	require.Error(t, err)
	appErr, ok := types.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeForbidden, appErr.Type)
	// The denial itself lands in the audit trail.
	repo.AssertCalled(t, "InsertAccessLog", mock.Anything, mock.AnythingOfType("*types.AccessLogEntry"))
	repo.AssertNotCalled(t, "GetPatientByName", mock.Anything, mock.Anything)
}

func TestNormalAccess_ValidationErrors(t *testing.T) {
	svc, _, _, _ := setupTestService()

	_, err := svc.NormalAccess(context.Background(), &SubmitRequest{
		Role:        "doctor",
		PatientName: "John Smith",
	})
	require.Error(t, err)

	_, err = svc.NormalAccess(context.Background(), &SubmitRequest{
		Name:        "dr.patel",
		PatientName: "John Smith",
	})
	require.Error(t, err)

	_, err = svc.NormalAccess(context.Background(), &SubmitRequest{
		Name: "dr.patel",
		Role: "doctor",
	})
	require.Error(t, err)
}

func TestRestrictedAccess_NeverReturnsPatientData(t *testing.T) {
	svc, repo, notifier, trust := setupTestService()

	repo.On("GetPatientByName", mock.Anything, "John Smith").Return(testPatient(), nil)
	repo.On("CreateAccessRequest", mock.Anything, mock.MatchedBy(func(r *types.AccessRequest) bool {
		return r.PatientID == "patient-1" && r.RequesterID == "dr.patel"
	})).Return(nil)
	repo.On("InsertAccessLog", mock.Anything, mock.MatchedBy(func(e *types.AccessLogEntry) bool {
		return e.Status == types.LogStatusPending
	})).Return(nil)
	trust.On("Recalculate", mock.Anything, "dr.patel").Return(42, nil)
	notifier.On("SendNewRequestNotification", "admin@medtrust.local", "dr.patel", "John Smith", mock.Anything).Return(nil)

	resp, err := svc.RestrictedAccess(context.Background(), &SubmitRequest{
		Name:          "dr.patel",
		Role:          "doctor",
		PatientName:   "John Smith",
		Justification: "remote consult for transferred patient",
		IPAddress:     outsideIP,
	})
	svc.Drain()

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.PatientData)
	assert.NotEmpty(t, resp.RequestID)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRestrictedAccess_MissingJustification(t *testing.T) {
	svc, repo, _, _ := setupTestService()

	_, err := svc.RestrictedAccess(context.Background(), &SubmitRequest{
		Name:        "dr.patel",
		Role:        "doctor",
		PatientName: "John Smith",
		IPAddress:   outsideIP,
	})
	require.Error(t, err)
	repo.AssertNotCalled(t, "CreateAccessRequest", mock.Anything, mock.Anything)
}

func TestEmergencyAccess_GrantsAndRecordsOnce(t *testing.T) {
	svc, repo, notifier, trust := setupTestService()

	repo.On("GetPatientByName", mock.Anything, "John Smith").Return(testPatient(), nil)
	repo.On("CreateEmergencyAccess", mock.Anything, mock.MatchedBy(func(ea *types.EmergencyAccess) bool {
		return ea.PatientID == "patient-1" && ea.GrantedBy == "dr.patel"
	})).Return(nil).Once()
	repo.On("InsertAccessLog", mock.Anything, mock.MatchedBy(func(e *types.AccessLogEntry) bool {
		return e.Status == types.LogStatusEmergency && e.Action == types.ActionEmergencyAccess
	})).Return(nil).Once()
	trust.On("Recalculate", mock.Anything, "dr.patel").Return(45, nil)
	notifier.On("SendEmergencyAlert", "admin@medtrust.local", "dr.patel", "John Smith", mock.Anything).Return(nil).Once()

	resp, err := svc.EmergencyAccess(context.Background(), &SubmitRequest{
		Name:          "dr.patel",
		Role:          "doctor",
		PatientName:   "John Smith",
		Justification: "patient unconscious after cardiac arrest",
		IPAddress:     outsideIP,
	})
	svc.Drain()

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.PatientData)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestEmergencyAccess_AlertFailureDoesNotRevokeGrant(t *testing.T) {
	svc, repo, notifier, trust := setupTestService()

	repo.On("GetPatientByName", mock.Anything, "John Smith").Return(testPatient(), nil)
	repo.On("CreateEmergencyAccess", mock.Anything, mock.Anything).Return(nil)
	repo.On("InsertAccessLog", mock.Anything, mock.Anything).Return(nil)
	trust.On("Recalculate", mock.Anything, "dr.patel").Return(45, nil)
	notifier.On("SendEmergencyAlert", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp unreachable"))

	resp, err := svc.EmergencyAccess(context.Background(), &SubmitRequest{
		Name:          "dr.patel",
		Role:          "doctor",
		PatientName:   "John Smith",
		Justification: "patient unconscious after cardiac arrest",
		IPAddress:     insideIP,
	})
	svc.Drain()

	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestEmergencyAccess_PatientRoleDenied(t *testing.T) {
	svc, repo, _, trust := setupTestService()

	repo.On("InsertAccessLog", mock.Anything, mock.Anything).Return(nil)
	trust.On("Recalculate", mock.Anything, "jdoe").Return(40, nil)

	_, err := svc.EmergencyAccess(context.Background(), &SubmitRequest{
		Name:          "jdoe",
		Role:          "patient",
		PatientName:   "John Smith",
		Justification: "I urgently want my record",
		IPAddress:     insideIP,
	})
	svc.Drain()

	require.Error(t, err)
	repo.AssertNotCalled(t, "CreateEmergencyAccess", mock.Anything, mock.Anything)
}

func TestTempAccess_NurseInsideNetwork(t *testing.T) {
	svc, repo, _, trust := setupTestService()

	repo.On("GetPatientByName", mock.Anything, "John Smith").Return(testPatient(), nil)
	repo.On("InsertAccessLog", mock.Anything, mock.MatchedBy(func(e *types.AccessLogEntry) bool {
		return e.Action == types.ActionTempAccess && e.Status == types.LogStatusSuccess
	})).Return(nil)
	trust.On("Recalculate", mock.Anything, "nurse.kim").Return(51, nil)

	resp, err := svc.TempAccess(context.Background(), &SubmitRequest{
		Name:        "nurse.kim",
		Role:        "nurse",
		PatientName: "John Smith",
		IPAddress:   insideIP,
	})
	svc.Drain()

	require.NoError(t, err)
	assert.NotNil(t, resp.PatientData)
}

func TestApproveRequest_PendingTransition(t *testing.T) {
	svc, repo, notifier, _ := setupTestService()

	pending := &types.AccessRequest{
		ID:          "req-1",
		PatientID:   "patient-1",
		RequesterID: "dr.patel",
		Status:      types.RequestStatusPending,
	}
	repo.On("GetAccessRequestByID", mock.Anything, "req-1").Return(pending, nil)
	repo.On("UpdateAccessRequestStatus", mock.Anything, mock.MatchedBy(func(r *types.AccessRequest) bool {
		return r.Status == types.RequestStatusApproved && r.ApprovedBy == "admin"
	})).Return(nil)
	repo.On("GetUserByName", mock.Anything, "dr.patel").Return(&types.User{
		Name:  "dr.patel",
		Email: "patel@hospital.example",
	}, nil)
	notifier.On("SendAccessApproved", "patel@hospital.example", "dr.patel", "patient-1").Return(nil)

	req, err := svc.ApproveRequest(context.Background(), "req-1", "admin")
	svc.Drain()

	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusApproved, req.Status)
	assert.NotNil(t, req.ApprovedAt)
	notifier.AssertExpectations(t)
}

func TestApproveRequest_AlreadyResolvedConflicts(t *testing.T) {
	svc, repo, _, _ := setupTestService()

	resolved := &types.AccessRequest{
		ID:     "req-1",
		Status: types.RequestStatusApproved,
	}
	repo.On("GetAccessRequestByID", mock.Anything, "req-1").Return(resolved, nil)

	_, err := svc.ApproveRequest(context.Background(), "req-1", "admin")
	require.Error(t, err)
	appErr, ok := types.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeConflict, appErr.Type)
	repo.AssertNotCalled(t, "UpdateAccessRequestStatus", mock.Anything, mock.Anything)
}

func TestDenyRequest_RecordsReason(t *testing.T) {
	svc, repo, notifier, _ := setupTestService()

	pending := &types.AccessRequest{
		ID:          "req-2",
		PatientID:   "patient-1",
		RequesterID: "dr.patel",
		Status:      types.RequestStatusPending,
	}
	repo.On("GetAccessRequestByID", mock.Anything, "req-2").Return(pending, nil)
	repo.On("UpdateAccessRequestStatus", mock.Anything, mock.MatchedBy(func(r *types.AccessRequest) bool {
		return r.Status == types.RequestStatusDenied && r.DenialReason == "insufficient justification"
	})).Return(nil)
	repo.On("GetUserByName", mock.Anything, "dr.patel").Return(&types.User{
		Name:  "dr.patel",
		Email: "patel@hospital.example",
	}, nil)
	notifier.On("SendAccessDenied", "patel@hospital.example", "dr.patel", "patient-1", "insufficient justification").Return(nil)

	req, err := svc.DenyRequest(context.Background(), "req-2", "admin", "insufficient justification")
	svc.Drain()

	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusDenied, req.Status)
	assert.NotNil(t, req.DeniedAt)
}

func TestDenyRequest_AlreadyDeniedConflicts(t *testing.T) {
	svc, repo, _, _ := setupTestService()

	resolved := &types.AccessRequest{
		ID:     "req-2",
		Status: types.RequestStatusDenied,
	}
	repo.On("GetAccessRequestByID", mock.Anything, "req-2").Return(resolved, nil)

	_, err := svc.DenyRequest(context.Background(), "req-2", "admin", "")
	require.Error(t, err)
	appErr, ok := types.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrorTypeConflict, appErr.Type)
}

func TestTrustScore_ReturnsStoredScoreAndLevel(t *testing.T) {
	svc, repo, _, _ := setupTestService()

	repo.On("GetUserByName", mock.Anything, "dr.patel").Return(&types.User{
		Name:       "dr.patel",
		TrustScore: 85,
	}, nil)

	score, level, err := svc.TrustScore(context.Background(), "dr.patel")
	require.NoError(t, err)
	assert.Equal(t, 85, score)
	assert.Equal(t, "Very High", level)
}

func TestAuditFailureDoesNotFailRequest(t *testing.T) {
	svc, repo, _, trust := setupTestService()

	repo.On("GetPatientByName", mock.Anything, "John Smith").Return(testPatient(), nil)
	repo.On("InsertAccessLog", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	trust.On("Recalculate", mock.Anything, "dr.patel").Return(55, nil)

	resp, err := svc.NormalAccess(context.Background(), &SubmitRequest{
		Name:        "dr.patel",
		Role:        "doctor",
		PatientName: "John Smith",
		IPAddress:   insideIP,
	})
	svc.Drain()

	require.NoError(t, err)
	assert.True(t, resp.Success)
}
