// Package session maps session tokens onto the HTTP cookie the admin UI
// uses. The cookie is the only token transport; there is no bearer-header
// path.
package session

import (
	"net/http"

	"github.com/opsdeck/opsdeck/internal/token"
)

// CookieName is the fixed name of the session cookie.
const CookieName = "jwtToken"

// Token extracts the session token from the request cookie. Returns the
// empty string when the cookie is absent.
func Token(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Cookie builds the session cookie carrying raw. The cookie lives exactly as
// long as the token it carries. Secure is only set in production-equivalent
// mode so local development over plain HTTP keeps working.
func Cookie(raw string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    raw,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(token.Lifetime.Seconds()),
	}
}

// Clear builds an empty, immediately-expiring session cookie.
func Clear(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}
