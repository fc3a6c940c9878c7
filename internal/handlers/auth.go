package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coverdeskhq/coverdesk/internal/auth"
	"github.com/coverdeskhq/coverdesk/internal/models"
	"github.com/coverdeskhq/coverdesk/internal/services"
	pkghttp "github.com/coverdeskhq/coverdesk/pkg/http"
)

// AuthServiceInterface defines the interface for the login flows
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, totpCode, ipAddress string) (*services.LoginResult, error)
	Logout(ctx context.Context, sessionID, userID, ipAddress string) error
}

// TOTPServiceInterface defines the interface for second factor enrollment
type TOTPServiceInterface interface {
	BeginTOTPSetup(ctx context.Context, actor *models.AuthUser) (*services.TOTPSetupResponse, error)
	ConfirmTOTPSetup(ctx context.Context, actor *models.AuthUser, code, ipAddress string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	totpService  TOTPServiceInterface
	cookieConfig auth.CookieConfig
	ipConfig     *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, totpService TOTPServiceInterface, cookieConfig auth.CookieConfig, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:      service,
		totpService:  totpService,
		cookieConfig: cookieConfig,
		ipConfig:     ipConfig,
	}
}

// LoginRequest represents the request body for login. The fields are not
// validated here: the login service checks them itself so that a
// malformed attempt still counts against the caller's address.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// LoginResponse is the success body. The CSRF token must be echoed back in
// the X-CSRF-Token header on every state-changing request.
type LoginResponse struct {
	User      *services.UserResponse `json:"user"`
	CSRFToken string                 `json:"csrf_token"`
}

// ValidateResponse is the body for GET /api/auth/validate
type ValidateResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CSRFToken string `json:"csrf_token"`
}

// TOTPConfirmRequest is the request body for enabling the second factor
type TOTPConfirmRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.TOTPCode, ipAddress)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Session.ID, h.cookieConfig)

	pkghttp.WriteData(w, http.StatusOK, LoginResponse{
		User:      result.User,
		CSRFToken: result.Session.CSRFToken,
	})
}

// Validate handles GET /api/auth/validate. The auth middleware has already
// resolved the session; this just echoes the identity back.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, ValidateResponse{
		UserID:    user.UserID,
		Email:     user.Email,
		Role:      user.Role,
		CSRFToken: user.CSRFToken,
	})
}

// Logout handles POST /api/auth/logout. Logging out without a live session
// still succeeds and still clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.GetSessionCookie(r, h.cookieConfig.Name)

	userID := ""
	if user := auth.GetUserFromContext(r); user != nil {
		userID = user.UserID
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.service.Logout(r.Context(), sessionID, userID, ipAddress); err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	auth.ClearSessionCookie(w, h.cookieConfig)

	pkghttp.WriteMessage(w, http.StatusOK, "Logged out")
}

// BeginTOTPSetup handles POST /api/auth/totp/setup
func (h *AuthHandler) BeginTOTPSetup(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	resp, err := h.totpService.BeginTOTPSetup(r.Context(), user)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteData(w, http.StatusOK, resp)
}

// ConfirmTOTPSetup handles POST /api/auth/totp/enable
func (h *AuthHandler) ConfirmTOTPSetup(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteDomainError(w, models.ErrUnauthorized)
		return
	}

	var req TOTPConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.totpService.ConfirmTOTPSetup(r.Context(), user, req.Code, ipAddress); err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, "Two-factor authentication enabled")
}
