package interfaces

import (
	"context"

	"github.com/medtrust/ehr/pkg/types"
)

// AccessRepository is the persistence surface the access core depends on.
// The storage engine behind it is deliberately opaque.
type AccessRepository interface {
	// Patients (read-only: the CRUD layer owns writes)
	GetPatientByName(ctx context.Context, name string) (*types.Patient, error)
	GetPatientByID(ctx context.Context, id string) (*types.Patient, error)

	// Access request workflow
	CreateAccessRequest(ctx context.Context, req *types.AccessRequest) error
	GetAccessRequestByID(ctx context.Context, id string) (*types.AccessRequest, error)
	UpdateAccessRequestStatus(ctx context.Context, req *types.AccessRequest) error
	GetAccessRequestsByPatient(ctx context.Context, patientID string) ([]*types.AccessRequest, error)
	GetPendingAccessRequests(ctx context.Context) ([]*types.AccessRequest, error)
	HasApprovedAccess(ctx context.Context, patientID, requesterID string) (bool, error)

	// Emergency access records
	CreateEmergencyAccess(ctx context.Context, ea *types.EmergencyAccess) error

	// Audit log (append-only)
	InsertAccessLog(ctx context.Context, entry *types.AccessLogEntry) error
	GetAccessLogs(ctx context.Context, filter *types.AccessLogFilter) ([]*types.AccessLogEntry, error)
	GetRecentLogsByActor(ctx context.Context, actorName string, limit int) ([]*types.AccessLogEntry, error)

	// Trust score persistence
	GetUserByName(ctx context.Context, name string) (*types.User, error)
	UpdateTrustScore(ctx context.Context, actorName string, score int) error
}

// Notifier delivers out-of-band notifications. Implementations must be safe
// to call from background goroutines; failures are logged, never propagated.
type Notifier interface {
	SendAccessApproved(to, requesterName, patientName string) error
	SendAccessDenied(to, requesterName, patientName, reason string) error
	SendEmergencyAlert(adminEmail, actorName, patientName, justification string) error
	SendNewRequestNotification(adminEmail, requesterName, patientName, reason string) error
	SendOTPEmail(to, name, code string) error
}

// TrustRecalculator recomputes an actor's trust score from audit history.
type TrustRecalculator interface {
	Recalculate(ctx context.Context, actorName string) (int, error)
}
