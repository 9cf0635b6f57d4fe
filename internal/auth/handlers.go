package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medtrust/ehr/pkg/interfaces"
	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/types"
)

// Handlers exposes the auth service over HTTP.
type Handlers struct {
	service *Service
	tokens  interfaces.TokenManager
	logger  *logger.Logger
}

// NewHandlers creates new auth HTTP handlers
func NewHandlers(service *Service, tokens interfaces.TokenManager, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		tokens:  tokens,
		logger:  log,
	}
}

// RegisterRoutes registers auth routes with the gin engine.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", h.login)
		auth.POST("/verify_otp", h.verifyOTP)
		auth.POST("/resend_otp", h.resendOTP)
		auth.POST("/admin/login", h.adminLogin)
		auth.GET("/me", h.me)
	}

	h.logger.Info("Auth service routes configured")
}

func (h *Handlers) login(c *gin.Context) {
	var creds types.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	result, err := h.service.Login(c.Request.Context(), &creds)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": result.SessionID,
		"message":    result.Message,
	})
}

func (h *Handlers) verifyOTP(c *gin.Context) {
	var body struct {
		SessionID string `json:"session_id"`
		Code      string `json:"code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	result, err := h.service.VerifyOTP(c.Request.Context(), body.SessionID, body.Code)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

func (h *Handlers) resendOTP(c *gin.Context) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	if err := h.service.ResendOTP(c.Request.Context(), body.SessionID); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Verification code resent",
	})
}

func (h *Handlers) adminLogin(c *gin.Context) {
	var creds types.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	result, err := h.service.AdminLogin(c.Request.Context(), &creds)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

// me returns the identity carried by the bearer token.
func (h *Handlers) me(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing authorization header"})
		return
	}

	claims, err := h.tokens.Validate(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    claims,
	})
}

func (h *Handlers) abortWithError(c *gin.Context, err error) {
	if appErr, ok := types.AsAppError(err); ok {
		c.JSON(appErr.HTTPStatus(), gin.H{"success": false, "error": appErr.Message})
		return
	}
	h.logger.WithComponent("auth_handlers").WithError(err).Error("Unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
}
