package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/opsdeck/opsdeck/internal/api/handler"
	"github.com/opsdeck/opsdeck/internal/api/middleware"
	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/user"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Auth          *auth.Service
	Registration  *auth.RegistrationService
	PasswordReset *auth.PasswordResetService
	Directory     user.Directory
	SecureCookies bool
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	h := handler.NewAuthHandler(deps.Auth, deps.Registration, deps.PasswordReset, deps.SecureCookies)

	r.Post("/login", h.Login)
	r.Post("/renew-token", h.RenewToken)
	r.Get("/registration-info", h.RegistrationInfo)
	r.Post("/register", h.Register)
	r.Post("/register-admin", h.RegisterAdmin)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Post("/reset-password", h.ResetPassword)
	r.Post("/logout", h.Logout)
	r.Get("/is-authenticated", h.IsAuthenticated)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(deps.Auth, deps.Directory))
		r.Get("/users/me", h.Me)
	})

	return r
}
