package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validateEmail(errs []FieldError, email string) []FieldError {
	email = strings.TrimSpace(email)
	if email == "" {
		return append(errs, FieldError{Field: "email", Message: "email is required"})
	}
	if len(email) > 255 || !emailPattern.MatchString(email) {
		return append(errs, FieldError{Field: "email", Message: "email must be a valid address"})
	}
	return errs
}

// validatePassword enforces the admin password policy: at least 8
// characters with one lowercase letter, one uppercase letter, and one digit.
func validatePassword(errs []FieldError, password string) []FieldError {
	if password == "" {
		return append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	if len(password) < 8 {
		return append(errs, FieldError{Field: "password", Message: "password must be at least 8 characters"})
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLower || !hasUpper || !hasDigit {
		errs = append(errs, FieldError{Field: "password", Message: "password must contain a lowercase letter, an uppercase letter, and a digit"})
	}

	return errs
}

// LoginRequest mirrors the fields needed for login validation.
type LoginRequest struct {
	Email    string
	Password string
}

// ValidateLoginRequest validates the fields of a login request.
func ValidateLoginRequest(req LoginRequest) []FieldError {
	var errs []FieldError
	errs = validateEmail(errs, req.Email)
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

// ValidateRegistrationInfoQuery validates the registration-info query string.
func ValidateRegistrationInfoQuery(registrationToken string) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(registrationToken) == "" {
		errs = append(errs, FieldError{Field: "registrationToken", Message: "registrationToken is required"})
	}
	return errs
}

// RegisterRequest mirrors the fields needed for invited-registration
// validation.
type RegisterRequest struct {
	RegistrationToken string
	Firstname         string
	Lastname          string
	Password          string
}

// ValidateRegisterRequest validates the fields of an invited-registration
// request.
func ValidateRegisterRequest(req RegisterRequest) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(req.RegistrationToken) == "" {
		errs = append(errs, FieldError{Field: "registrationToken", Message: "registrationToken is required"})
	}
	if strings.TrimSpace(req.Firstname) == "" {
		errs = append(errs, FieldError{Field: "firstname", Message: "firstname is required"})
	}
	return validatePassword(errs, req.Password)
}

// RegisterAdminRequest mirrors the fields needed for bootstrap-registration
// validation.
type RegisterAdminRequest struct {
	Email     string
	Username  string
	Firstname string
	Lastname  string
	Password  string
}

// ValidateRegisterAdminRequest validates the fields of a bootstrap
// registration request.
func ValidateRegisterAdminRequest(req RegisterAdminRequest) []FieldError {
	var errs []FieldError
	errs = validateEmail(errs, req.Email)
	if strings.TrimSpace(req.Firstname) == "" {
		errs = append(errs, FieldError{Field: "firstname", Message: "firstname is required"})
	}
	if len(req.Username) > 255 {
		errs = append(errs, FieldError{Field: "username", Message: "username must be at most 255 characters"})
	}
	return validatePassword(errs, req.Password)
}

// ValidateForgotPasswordRequest validates the shape of a forgot-password
// request. Only the shape: whether the email maps to an account is never
// part of the response.
func ValidateForgotPasswordRequest(email string) []FieldError {
	var errs []FieldError
	return validateEmail(errs, email)
}

// ResetPasswordRequest mirrors the fields needed for reset-password
// validation.
type ResetPasswordRequest struct {
	ResetPasswordToken string
	Password           string
}

// ValidateResetPasswordRequest validates the fields of a reset-password
// request.
func ValidateResetPasswordRequest(req ResetPasswordRequest) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(req.ResetPasswordToken) == "" {
		errs = append(errs, FieldError{Field: "resetPasswordToken", Message: "resetPasswordToken is required"})
	}
	return validatePassword(errs, req.Password)
}
