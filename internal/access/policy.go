package access

import (
	"fmt"

	"github.com/medtrust/ehr/pkg/types"
)

// PolicyRequest carries everything the evaluator needs for one decision.
type PolicyRequest struct {
	ActorName     string
	Role          types.UserRole
	AccessType    types.AccessType
	Justification string
	IPAddress     string
}

// Evaluate decides whether an access attempt is permitted. It is stateless
// and side-effect free: route guards upstream are expected to reject most
// bad requests already, but the evaluator re-validates everything it
// depends on.
func Evaluate(req *PolicyRequest) (*types.AccessDecision, error) {
	decision := &types.AccessDecision{
		AccessType:    req.AccessType,
		InsideNetwork: InsideNetwork(req.IPAddress),
	}

	isAdmin := req.Role == types.RoleAdmin

	switch req.AccessType {
	case types.AccessTypeNormal:
		// Admins bypass all network gating.
		if !decision.InsideNetwork && !isAdmin {
			decision.Allowed = false
			decision.Reason = "normal access requires the trusted hospital network"
			decision.LogAction = types.ActionNormalAccess
			decision.LogStatus = types.LogStatusDenied
			return decision, nil
		}
		decision.Allowed = true
		decision.Reason = "inside trusted network"
		decision.LogAction = types.ActionNormalAccess
		decision.LogStatus = types.LogStatusSuccess
		return decision, nil

	case types.AccessTypeRestricted:
		if req.Justification == "" {
			return nil, types.NewValidationError("justification", "justification is required for restricted access")
		}
		if decision.InsideNetwork && !isAdmin {
			decision.Allowed = false
			decision.Reason = "restricted access is for requests from outside the network"
			decision.LogAction = types.ActionRestrictedRequest
			decision.LogStatus = types.LogStatusDenied
			return decision, nil
		}
		// A restricted grant never releases data directly; it only opens a
		// pending request for an admin to resolve.
		decision.Allowed = true
		decision.Reason = "pending admin approval"
		decision.LogAction = types.ActionRestrictedRequest
		decision.LogStatus = types.LogStatusPending
		return decision, nil

	case types.AccessTypeEmergency:
		if req.Justification == "" {
			return nil, types.NewValidationError("justification", "justification is required for emergency access")
		}
		if !req.Role.IsClinical() && !isAdmin {
			decision.Allowed = false
			decision.Reason = fmt.Sprintf("role %q cannot use break-glass access", req.Role)
			decision.LogAction = types.ActionEmergencyAccess
			decision.LogStatus = types.LogStatusDenied
			return decision, nil
		}
		// Break-glass is unconditional for clinical staff regardless of
		// network tier. Audit and alerting carry the accountability.
		decision.Allowed = true
		decision.Reason = "break-glass override"
		decision.LogAction = types.ActionEmergencyAccess
		decision.LogStatus = types.LogStatusEmergency
		return decision, nil

	case types.AccessTypeTemp:
		if req.Role != types.RoleNurse {
			decision.Allowed = false
			decision.Reason = "temporary access is limited to nurses"
			decision.LogAction = types.ActionTempAccess
			decision.LogStatus = types.LogStatusDenied
			return decision, nil
		}
		if !decision.InsideNetwork {
			decision.Allowed = false
			decision.Reason = "temporary access is only available inside the hospital network"
			decision.LogAction = types.ActionTempAccess
			decision.LogStatus = types.LogStatusDenied
			return decision, nil
		}
		decision.Allowed = true
		decision.Reason = "temporary in-network grant"
		decision.LogAction = types.ActionTempAccess
		decision.LogStatus = types.LogStatusSuccess
		return decision, nil

	default:
		return nil, types.NewValidationError("access_type", fmt.Sprintf("unknown access type %q", req.AccessType))
	}
}
