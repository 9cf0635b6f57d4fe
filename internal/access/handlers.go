package access

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/medtrust/ehr/pkg/interfaces"
	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/types"
)

// Handlers exposes the access core over HTTP.
type Handlers struct {
	service *Service
	tokens  interfaces.TokenManager
	logger  *logger.Logger
}

// NewHandlers creates new access HTTP handlers
func NewHandlers(service *Service, tokens interfaces.TokenManager, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		tokens:  tokens,
		logger:  log,
	}
}

// RegisterRoutes registers access routes with the router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/access/normal_access", h.normalAccessHandler).Methods("POST")
	api.HandleFunc("/access/restricted_access", h.restrictedAccessHandler).Methods("POST")
	api.HandleFunc("/access/emergency_access", h.emergencyAccessHandler).Methods("POST")
	api.HandleFunc("/access/temp_access", h.tempAccessHandler).Methods("POST")

	api.HandleFunc("/access/precheck", h.precheckGetHandler).Methods("GET")
	api.HandleFunc("/access/precheck", h.precheckPostHandler).Methods("POST")
	api.HandleFunc("/access/patient/{patientId}", h.patientRequestsHandler).Methods("GET")

	api.HandleFunc("/ip_check", h.ipCheckHandler).Methods("GET")
	api.HandleFunc("/trust_score/{name}", h.trustScoreHandler).Methods("GET")

	// Admin-only routes
	api.Handle("/access/{requestId}/approve", h.requireAdmin(http.HandlerFunc(h.approveHandler))).Methods("PUT")
	api.Handle("/access/{requestId}/deny", h.requireAdmin(http.HandlerFunc(h.denyHandler))).Methods("PUT")
	api.Handle("/access/pending", h.requireAdmin(http.HandlerFunc(h.pendingRequestsHandler))).Methods("GET")
	api.Handle("/logs/access", h.requireAdmin(http.HandlerFunc(h.accessLogsHandler))).Methods("GET")

	h.logger.Info("Access service routes configured")
}

func (h *Handlers) normalAccessHandler(w http.ResponseWriter, r *http.Request) {
	h.submitHandler(w, r, h.service.NormalAccess)
}

func (h *Handlers) restrictedAccessHandler(w http.ResponseWriter, r *http.Request) {
	h.submitHandler(w, r, h.service.RestrictedAccess)
}

func (h *Handlers) emergencyAccessHandler(w http.ResponseWriter, r *http.Request) {
	h.submitHandler(w, r, h.service.EmergencyAccess)
}

func (h *Handlers) tempAccessHandler(w http.ResponseWriter, r *http.Request) {
	h.submitHandler(w, r, h.service.TempAccess)
}

type submitFunc func(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error)

func (h *Handlers) submitHandler(w http.ResponseWriter, r *http.Request, submit submitFunc) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.IPAddress = ClientIP(r)

	resp, err := submit(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) approveHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]
	adminName := adminNameFromRequest(r)

	req, err := h.service.ApproveRequest(r.Context(), requestID, adminName)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Access request approved",
		"request": req,
	})
}

func (h *Handlers) denyHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]
	adminName := adminNameFromRequest(r)

	var body struct {
		Reason string `json:"reason"`
	}
	// A missing body means an unexplained denial, which is allowed.
	_ = json.NewDecoder(r.Body).Decode(&body)

	req, err := h.service.DenyRequest(r.Context(), requestID, adminName, body.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Access request denied",
		"request": req,
	})
}

func (h *Handlers) precheckGetHandler(w http.ResponseWriter, r *http.Request) {
	patientID := r.URL.Query().Get("patientId")
	userID := r.URL.Query().Get("userId")
	if patientID == "" || userID == "" {
		h.writeErrorResponse(w, http.StatusBadRequest, "patientId and userId are required")
		return
	}

	hasAccess, err := h.service.HasAccess(r.Context(), patientID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"hasAccess": hasAccess,
	})
}

// precheckPostHandler runs the advisory justification check. It never
// fails: a malformed request degrades to a neutral response because the
// precheck must not block the underlying submission path.
func (h *Handlers) precheckPostHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Justification string `json:"justification"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeJSONResponse(w, http.StatusOK, types.PrecheckResult{
			Status:  types.PrecheckInvalid,
			Message: "Offline check unavailable",
		})
		return
	}

	h.writeJSONResponse(w, http.StatusOK, PrecheckJustification(body.Justification))
}

func (h *Handlers) patientRequestsHandler(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patientId"]

	requests, err := h.service.RequestsForPatient(r.Context(), patientID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"requests": requests,
		"count":    len(requests),
	})
}

func (h *Handlers) pendingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.PendingRequests(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"requests": requests,
		"count":    len(requests),
	})
}

func (h *Handlers) ipCheckHandler(w http.ResponseWriter, r *http.Request) {
	ip := ClientIP(r)
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"ip":             ip,
		"inside_network": InsideNetwork(ip),
	})
}

func (h *Handlers) trustScoreHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	score, level, err := h.service.TrustScore(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"trust_score": score,
		"trustLevel":  level,
	})
}

func (h *Handlers) accessLogsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &types.AccessLogFilter{
		ActorName: q.Get("actor"),
		PatientID: q.Get("patient"),
		Action:    q.Get("action"),
		Status:    q.Get("status"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	logs, err := h.service.AccessLogs(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"logs":    logs,
		"count":   len(logs),
	})
}

// requireAdmin validates the bearer token and checks for the admin role.
func (h *Handlers) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.writeErrorResponse(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := h.tokens.Validate(token)
		if err != nil {
			h.writeErrorResponse(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Role != types.RoleAdmin {
			h.writeErrorResponse(w, http.StatusForbidden, "admin role required")
			return
		}

		r.Header.Set("X-Admin-Name", claims.Name)
		next.ServeHTTP(w, r)
	})
}

func adminNameFromRequest(r *http.Request) string {
	return r.Header.Get("X-Admin-Name")
}

// ClientIP resolves the caller's address, preferring the first hop of
// X-Forwarded-For when a proxy is in front.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	if appErr, ok := types.AsAppError(err); ok {
		h.writeErrorResponse(w, appErr.HTTPStatus(), appErr.Message)
		return
	}
	h.logger.WithComponent("access_handlers").WithError(err).Error("Unhandled error")
	h.writeErrorResponse(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithComponent("access_handlers").WithError(err).Error("Failed to encode response")
	}
}

func (h *Handlers) writeErrorResponse(w http.ResponseWriter, status int, message string) {
	h.writeJSONResponse(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
