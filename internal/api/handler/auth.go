package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/opsdeck/opsdeck/internal/api/middleware"
	"github.com/opsdeck/opsdeck/internal/api/response"
	"github.com/opsdeck/opsdeck/internal/api/session"
	"github.com/opsdeck/opsdeck/internal/api/validation"
	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/user"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	RegistrationToken string `json:"registrationToken"`
	Firstname         string `json:"firstname"`
	Lastname          string `json:"lastname"`
	Password          string `json:"password"`
}

type registerAdminRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Password  string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	ResetPasswordToken string `json:"resetPasswordToken"`
	Password           string `json:"password"`
}

type loginResponse struct {
	Status string          `json:"status"`
	User   *user.Sanitized `json:"user"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type registerResponse struct {
	Token string          `json:"token"`
	User  *user.Sanitized `json:"user"`
}

type userResponse struct {
	User *user.Sanitized `json:"user"`
}

type authorizedResponse struct {
	Authorized bool   `json:"authorized"`
	Message    string `json:"message,omitempty"`
}

// AuthHandler handles the session and registration endpoints.
type AuthHandler struct {
	authService   *auth.Service
	registration  *auth.RegistrationService
	passwordReset *auth.PasswordResetService
	secureCookies bool
}

// NewAuthHandler creates a new AuthHandler. secureCookies marks session
// cookies Secure; it is only set in production-equivalent mode.
func NewAuthHandler(authService *auth.Service, registration *auth.RegistrationService, passwordReset *auth.PasswordResetService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		registration:  registration,
		passwordReset: passwordReset,
		secureCookies: secureCookies,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fieldErrors := validation.ValidateLoginRequest(validation.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	u, raw, err := h.authService.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			response.Err(w, http.StatusBadRequest, "CREDENTIALS_INVALID", "Invalid credentials", requestID)
			return
		}
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", requestID)
		return
	}

	http.SetCookie(w, session.Cookie(raw, h.secureCookies))
	response.Success(w, http.StatusOK, loginResponse{Status: "Authenticated", User: u}, requestID)
}

// RenewToken handles POST /renew-token. The current token is read from the
// session cookie; a fresh one is returned in the body.
func (h *AuthHandler) RenewToken(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	fresh, err := h.authService.Renew(r.Context(), session.Token(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			response.Err(w, http.StatusBadRequest, "MISSING_TOKEN", "Missing token", requestID)
		case errors.Is(err, auth.ErrInvalidToken):
			response.Err(w, http.StatusBadRequest, "INVALID_TOKEN", "Invalid token", requestID)
		default:
			slog.Error("failed to renew token", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to renew token", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, tokenResponse{Token: fresh}, requestID)
}

// RegistrationInfo handles GET /registration-info.
func (h *AuthHandler) RegistrationInfo(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	registrationToken := r.URL.Query().Get("registrationToken")
	if fieldErrors := validation.ValidateRegistrationInfoQuery(registrationToken); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "QUERY_ERROR", "Invalid query", fieldErrors, requestID)
		return
	}

	info, err := h.registration.RegistrationInfo(r.Context(), registrationToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRegistrationToken) {
			response.Err(w, http.StatusBadRequest, "INVALID_REGISTRATION_TOKEN", "Invalid registrationToken", requestID)
			return
		}
		slog.Error("failed to fetch registration info", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch registration info", requestID)
		return
	}

	response.Success(w, http.StatusOK, info, requestID)
}

// Register handles POST /register, completing an invited-user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fieldErrors := validation.ValidateRegisterRequest(validation.RegisterRequest{
		RegistrationToken: req.RegistrationToken,
		Firstname:         req.Firstname,
		Lastname:          req.Lastname,
		Password:          req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	u, raw, err := h.registration.RegisterInvited(r.Context(), auth.InvitedInput{
		RegistrationToken: req.RegistrationToken,
		Firstname:         strings.TrimSpace(req.Firstname),
		Lastname:          strings.TrimSpace(req.Lastname),
		Password:          req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRegistrationToken) {
			response.Err(w, http.StatusBadRequest, "INVALID_REGISTRATION_TOKEN", "Invalid registrationToken", requestID)
			return
		}
		slog.Error("failed to register invited user", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Registration failed", requestID)
		return
	}

	response.Success(w, http.StatusOK, registerResponse{Token: raw, User: u}, requestID)
}

// RegisterAdmin handles POST /register-admin, the one-time bootstrap
// registration. On success it opens a session exactly as login does.
func (h *AuthHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req registerAdminRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fieldErrors := validation.ValidateRegisterAdminRequest(validation.RegisterAdminRequest{
		Email:     req.Email,
		Username:  req.Username,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Password:  req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	u, raw, err := h.registration.RegisterSuperAdmin(r.Context(), auth.AdminInput{
		Email:     strings.TrimSpace(req.Email),
		Username:  strings.TrimSpace(req.Username),
		Firstname: strings.TrimSpace(req.Firstname),
		Lastname:  strings.TrimSpace(req.Lastname),
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, user.ErrSuperAdminExists) {
			response.Err(w, http.StatusBadRequest, "SUPER_ADMIN_EXISTS", "You cannot register a new super admin", requestID)
			return
		}
		// ErrSuperAdminRoleMissing lands here deliberately: a missing role
		// definition is deployment corruption and must never be presented
		// as a user error.
		slog.Error("bootstrap registration failed", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Bootstrap registration failed", requestID)
		return
	}

	http.SetCookie(w, session.Cookie(raw, h.secureCookies))
	response.Success(w, http.StatusOK, userResponse{User: u}, requestID)
}

// ForgotPassword handles POST /forgot-password. The response is 204 whether
// or not the email maps to an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req forgotPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if fieldErrors := validation.ValidateForgotPasswordRequest(req.Email); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	h.passwordReset.ForgotPassword(r.Context(), strings.TrimSpace(req.Email))
	response.NoContent(w)
}

// ResetPassword handles POST /reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req resetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fieldErrors := validation.ValidateResetPasswordRequest(validation.ResetPasswordRequest{
		ResetPasswordToken: req.ResetPasswordToken,
		Password:           req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	u, raw, err := h.passwordReset.ResetPassword(r.Context(), req.ResetPasswordToken, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidResetToken) {
			response.Err(w, http.StatusBadRequest, "INVALID_RESET_TOKEN", "Invalid reset password token", requestID)
			return
		}
		slog.Error("failed to reset password", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password", requestID)
		return
	}

	http.SetCookie(w, session.Cookie(raw, h.secureCookies))
	response.Success(w, http.StatusOK, userResponse{User: u}, requestID)
}

// Logout handles POST /logout. The token is revoked and the session cookie
// cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if err := h.authService.Logout(r.Context(), session.Token(r)); err != nil {
		if errors.Is(err, auth.ErrMissingToken) {
			response.Err(w, http.StatusBadRequest, "MISSING_TOKEN", "Missing token", requestID)
			return
		}
		slog.Error("failed to revoke token", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Logout failed", requestID)
		return
	}

	http.SetCookie(w, session.Clear(h.secureCookies))
	response.Success(w, http.StatusOK, authorizedResponse{
		Authorized: true,
		Message:    "Successfully destroyed session",
	}, requestID)
}

// IsAuthenticated handles GET /is-authenticated. It never errors; an absent
// or unacceptable token simply reports authorized=false.
func (h *AuthHandler) IsAuthenticated(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	authorized := h.authService.IsAuthenticated(r.Context(), session.Token(r))
	response.Success(w, http.StatusOK, authorizedResponse{Authorized: authorized}, requestID)
}

// Me handles GET /users/me. The session middleware has already resolved the
// current user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	u := middleware.GetCurrentUser(r.Context())
	if u == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "A valid session is required", requestID)
		return
	}

	response.Success(w, http.StatusOK, userResponse{User: u}, requestID)
}
