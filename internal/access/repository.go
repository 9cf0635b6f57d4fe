package access

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/types"
)

// Repository implements the access-control persistence surface on
// PostgreSQL.
type Repository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRepository creates a new access repository
func NewRepository(db *sql.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// GetPatientByName retrieves a patient record by name
func (r *Repository) GetPatientByName(ctx context.Context, name string) (*types.Patient, error) {
	query := `
		SELECT id, name, age, diagnosis, treatment, assigned_doctor, created_at, updated_at
		FROM patients
		WHERE LOWER(name) = LOWER($1)`

	return r.scanPatient(r.db.QueryRowContext(ctx, query, name), name)
}

// GetPatientByID retrieves a patient record by id
func (r *Repository) GetPatientByID(ctx context.Context, id string) (*types.Patient, error) {
	query := `
		SELECT id, name, age, diagnosis, treatment, assigned_doctor, created_at, updated_at
		FROM patients
		WHERE id = $1`

	return r.scanPatient(r.db.QueryRowContext(ctx, query, id), id)
}

func (r *Repository) scanPatient(row *sql.Row, ref string) (*types.Patient, error) {
	var p types.Patient
	var treatment, assignedDoctor sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Diagnosis, &treatment, &assignedDoctor, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("patient not found")
		}
		return nil, fmt.Errorf("failed to get patient %s: %w", ref, err)
	}
	p.Treatment = treatment.String
	p.AssignedDoctor = assignedDoctor.String
	return &p, nil
}

// CreateAccessRequest inserts a new pending access request
func (r *Repository) CreateAccessRequest(ctx context.Context, req *types.AccessRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	req.ExpiresAt = req.CreatedAt.Add(types.RequestExpiry)
	req.Status = types.RequestStatusPending

	query := `
		INSERT INTO access_requests (
			id, patient_id, requester_id, role, access_type, reason,
			status, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.PatientID,
		req.RequesterID,
		req.Role,
		req.AccessType,
		req.Reason,
		req.Status,
		req.CreatedAt,
		req.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access request: %w", err)
	}

	r.logger.WithComponent("repository").WithFields(map[string]interface{}{
		"request_id": req.ID,
		"patient_id": req.PatientID,
	}).Info("Access request created")
	return nil
}

// GetAccessRequestByID retrieves a single access request
func (r *Repository) GetAccessRequestByID(ctx context.Context, id string) (*types.AccessRequest, error) {
	query := `
		SELECT id, patient_id, requester_id, role, access_type, reason, status,
		       approved_by, approved_at, denied_by, denied_at, denial_reason,
		       created_at, expires_at
		FROM access_requests
		WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	req, err := scanAccessRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("access request not found")
		}
		return nil, fmt.Errorf("failed to get access request %s: %w", id, err)
	}
	return req, nil
}

// UpdateAccessRequestStatus persists an approve/deny transition. The WHERE
// clause insists the row is still pending, so a concurrent second
// transition affects zero rows and surfaces as a state conflict.
func (r *Repository) UpdateAccessRequestStatus(ctx context.Context, req *types.AccessRequest) error {
	query := `
		UPDATE access_requests
		SET status = $1, approved_by = $2, approved_at = $3,
		    denied_by = $4, denied_at = $5, denial_reason = $6
		WHERE id = $7 AND status = $8`

	result, err := r.db.ExecContext(ctx, query,
		req.Status,
		nullString(req.ApprovedBy),
		nullTime(req.ApprovedAt),
		nullString(req.DeniedBy),
		nullTime(req.DeniedAt),
		nullString(req.DenialReason),
		req.ID,
		types.RequestStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update access request %s: %w", req.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return types.NewStateError("access request is no longer pending")
	}
	return nil
}

// GetAccessRequestsByPatient lists all access requests for a patient
func (r *Repository) GetAccessRequestsByPatient(ctx context.Context, patientID string) ([]*types.AccessRequest, error) {
	query := `
		SELECT id, patient_id, requester_id, role, access_type, reason, status,
		       approved_by, approved_at, denied_by, denied_at, denial_reason,
		       created_at, expires_at
		FROM access_requests
		WHERE patient_id = $1
		ORDER BY created_at DESC`

	return r.queryAccessRequests(ctx, query, patientID)
}

// GetPendingAccessRequests lists requests awaiting an admin decision
func (r *Repository) GetPendingAccessRequests(ctx context.Context) ([]*types.AccessRequest, error) {
	query := `
		SELECT id, patient_id, requester_id, role, access_type, reason, status,
		       approved_by, approved_at, denied_by, denied_at, denial_reason,
		       created_at, expires_at
		FROM access_requests
		WHERE status = $1
		ORDER BY created_at ASC`

	return r.queryAccessRequests(ctx, query, types.RequestStatusPending)
}

// HasApprovedAccess reports whether the requester holds an unexpired
// approved request for the patient.
func (r *Repository) HasApprovedAccess(ctx context.Context, patientID, requesterID string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM access_requests
		WHERE patient_id = $1 AND requester_id = $2 AND status = $3 AND expires_at > NOW()`

	var count int
	err := r.db.QueryRowContext(ctx, query, patientID, requesterID, types.RequestStatusApproved).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check approved access: %w", err)
	}
	return count > 0, nil
}

// CreateEmergencyAccess inserts a break-glass grant record
func (r *Repository) CreateEmergencyAccess(ctx context.Context, ea *types.EmergencyAccess) error {
	if ea.ID == "" {
		ea.ID = uuid.New().String()
	}
	if ea.CreatedAt.IsZero() {
		ea.CreatedAt = time.Now()
	}
	ea.ExpiresAt = ea.CreatedAt.Add(types.EmergencyAccessTTL)

	query := `
		INSERT INTO emergency_access (id, patient_id, granted_by, reason, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		ea.ID,
		ea.PatientID,
		ea.GrantedBy,
		ea.Reason,
		ea.CreatedAt,
		ea.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create emergency access: %w", err)
	}

	r.logger.Security("emergency_access_granted", ea.GrantedBy, map[string]interface{}{
		"patient_id": ea.PatientID,
		"access_id":  ea.ID,
	})
	return nil
}

// InsertAccessLog appends an audit row. Rows are immutable once written.
func (r *Repository) InsertAccessLog(ctx context.Context, entry *types.AccessLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := `
		INSERT INTO access_logs (id, actor_name, role, patient_id, action, justification, ip_address, status, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ActorName,
		entry.Role,
		entry.PatientID,
		entry.Action,
		entry.Justification,
		entry.IPAddress,
		entry.Status,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access log: %w", err)
	}
	return nil
}

// GetAccessLogs retrieves audit entries based on filter criteria
func (r *Repository) GetAccessLogs(ctx context.Context, filter *types.AccessLogFilter) ([]*types.AccessLogEntry, error) {
	query := `
		SELECT id, actor_name, role, patient_id, action, justification, ip_address, status, timestamp
		FROM access_logs
		WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	if filter.ActorName != "" {
		query += fmt.Sprintf(" AND actor_name = $%d", argIndex)
		args = append(args, filter.ActorName)
		argIndex++
	}

	if filter.PatientID != "" {
		query += fmt.Sprintf(" AND patient_id = $%d", argIndex)
		args = append(args, filter.PatientID)
		argIndex++
	}

	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIndex)
		args = append(args, filter.Action)
		argIndex++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}

	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIndex)
		args = append(args, filter.StartTime)
		argIndex++
	}

	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIndex)
		args = append(args, filter.EndTime)
		argIndex++
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access logs: %w", err)
	}
	defer rows.Close()

	return scanAccessLogs(rows)
}

// GetRecentLogsByActor fetches the actor's newest audit entries, newest
// first. This is the trust engine's only read path.
func (r *Repository) GetRecentLogsByActor(ctx context.Context, actorName string, limit int) ([]*types.AccessLogEntry, error) {
	query := `
		SELECT id, actor_name, role, patient_id, action, justification, ip_address, status, timestamp
		FROM access_logs
		WHERE actor_name = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, actorName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent logs for %s: %w", actorName, err)
	}
	defer rows.Close()

	return scanAccessLogs(rows)
}

// GetUserByName retrieves a user record by display name
func (r *Repository) GetUserByName(ctx context.Context, name string) (*types.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, trust_score, is_active, created_at, updated_at
		FROM users
		WHERE LOWER(name) = LOWER($1)`

	var u types.User
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.TrustScore, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("user not found")
		}
		return nil, fmt.Errorf("failed to get user %s: %w", name, err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user record by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, trust_score, is_active, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)`

	var u types.User
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.TrustScore, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError("user not found")
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// UpdateTrustScore persists a recomputed score and its update time
func (r *Repository) UpdateTrustScore(ctx context.Context, actorName string, score int) error {
	query := `
		UPDATE users
		SET trust_score = $1, trust_updated_at = NOW(), updated_at = NOW()
		WHERE LOWER(name) = LOWER($2)`

	result, err := r.db.ExecContext(ctx, query, score, actorName)
	if err != nil {
		return fmt.Errorf("failed to update trust score for %s: %w", actorName, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return types.NewNotFoundError("user not found")
	}
	return nil
}

// scan helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccessRequest(row rowScanner) (*types.AccessRequest, error) {
	var req types.AccessRequest
	var approvedBy, deniedBy, denialReason sql.NullString
	var approvedAt, deniedAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.PatientID, &req.RequesterID, &req.Role, &req.AccessType,
		&req.Reason, &req.Status,
		&approvedBy, &approvedAt, &deniedBy, &deniedAt, &denialReason,
		&req.CreatedAt, &req.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	req.ApprovedBy = approvedBy.String
	req.DeniedBy = deniedBy.String
	req.DenialReason = denialReason.String
	if approvedAt.Valid {
		req.ApprovedAt = &approvedAt.Time
	}
	if deniedAt.Valid {
		req.DeniedAt = &deniedAt.Time
	}
	return &req, nil
}

func (r *Repository) queryAccessRequests(ctx context.Context, query string, args ...interface{}) ([]*types.AccessRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access requests: %w", err)
	}
	defer rows.Close()

	var requests []*types.AccessRequest
	for rows.Next() {
		req, err := scanAccessRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanAccessLogs(rows *sql.Rows) ([]*types.AccessLogEntry, error) {
	var entries []*types.AccessLogEntry
	for rows.Next() {
		var e types.AccessLogEntry
		var justification, ipAddress sql.NullString
		err := rows.Scan(
			&e.ID, &e.ActorName, &e.Role, &e.PatientID, &e.Action,
			&justification, &ipAddress, &e.Status, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access log: %w", err)
		}
		e.Justification = justification.String
		e.IPAddress = ipAddress.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
