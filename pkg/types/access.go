package types

import "time"

// AccessType distinguishes the three access paths through the policy engine.
type AccessType string

const (
	AccessTypeNormal     AccessType = "normal"
	AccessTypeRestricted AccessType = "restricted"
	AccessTypeEmergency  AccessType = "emergency"
	AccessTypeTemp       AccessType = "temp"
)

// Access request lifecycle states. Once a request leaves pending the state
// is terminal.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusDenied   = "denied"
)

// Audit log action tags. The trust engine matches on substrings of these,
// so the EMERGENCY/RESTRICTED/NORMAL/TEMP/LOGIN markers are load-bearing.
const (
	ActionNormalAccess      = "NORMAL_ACCESS"
	ActionRestrictedRequest = "RESTRICTED_ACCESS_REQUEST"
	ActionEmergencyAccess   = "EMERGENCY_ACCESS"
	ActionTempAccess        = "TEMP_ACCESS"
	ActionLogin             = "LOGIN"
)

// Audit log outcome statuses.
const (
	LogStatusSuccess   = "Success"
	LogStatusDenied    = "Denied"
	LogStatusEmergency = "Emergency"
	LogStatusPending   = "Pending Admin Approval"
)

// RequestExpiry is the informational lifetime of an access request.
const RequestExpiry = 30 * 24 * time.Hour

// EmergencyAccessTTL bounds how long a break-glass grant remains valid.
const EmergencyAccessTTL = 24 * time.Hour

// TempAccessTTL bounds a nurse's temporary in-network grant.
const TempAccessTTL = 30 * time.Minute

// AccessRequest represents a pending or resolved request for patient data.
type AccessRequest struct {
	ID           string     `json:"id" db:"id"`
	PatientID    string     `json:"patient_id" db:"patient_id"`
	RequesterID  string     `json:"requester_id" db:"requester_id"`
	Role         UserRole   `json:"role" db:"role"`
	AccessType   AccessType `json:"access_type" db:"access_type"`
	Reason       string     `json:"reason" db:"reason"`
	Status       string     `json:"status" db:"status"`
	ApprovedBy   string     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	DeniedBy     string     `json:"denied_by,omitempty" db:"denied_by"`
	DeniedAt     *time.Time `json:"denied_at,omitempty" db:"denied_at"`
	DenialReason string     `json:"denial_reason,omitempty" db:"denial_reason"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at" db:"expires_at"`
}

// EmergencyAccess is a break-glass grant. It is never pending and never
// denied; its existence is the audit trail.
type EmergencyAccess struct {
	ID        string    `json:"id" db:"id"`
	PatientID string    `json:"patient_id" db:"patient_id"`
	GrantedBy string    `json:"granted_by" db:"granted_by"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// AccessLogEntry is one append-only audit row. It is the sole input to
// trust recalculation and is immutable once written.
type AccessLogEntry struct {
	ID            string    `json:"id" db:"id"`
	ActorName     string    `json:"actor_name" db:"actor_name"`
	Role          UserRole  `json:"role" db:"role"`
	PatientID     string    `json:"patient_id" db:"patient_id"`
	Action        string    `json:"action" db:"action"`
	Justification string    `json:"justification,omitempty" db:"justification"`
	IPAddress     string    `json:"ip_address" db:"ip_address"`
	Status        string    `json:"status" db:"status"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
}

// AccessLogFilter narrows audit trail queries.
type AccessLogFilter struct {
	ActorName string    `json:"actor_name,omitempty"`
	PatientID string    `json:"patient_id,omitempty"`
	Action    string    `json:"action,omitempty"`
	Status    string    `json:"status,omitempty"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}

// PrecheckStatus classifies a free-text justification before submission.
type PrecheckStatus string

const (
	PrecheckInvalid PrecheckStatus = "invalid"
	PrecheckWeak    PrecheckStatus = "weak"
	PrecheckValid   PrecheckStatus = "valid"
)

// PrecheckResult is the advisory response of the justification prechecker.
// It never blocks submission.
type PrecheckResult struct {
	Status  PrecheckStatus `json:"status"`
	Message string         `json:"message"`
}

// AccessDecision is the policy evaluator's verdict for one request.
type AccessDecision struct {
	Allowed       bool       `json:"allowed"`
	AccessType    AccessType `json:"access_type"`
	Reason        string     `json:"reason"`
	InsideNetwork bool       `json:"inside_network"`
	LogAction     string     `json:"-"`
	LogStatus     string     `json:"-"`
}
