package auth

import (
	"net/http"
	"time"
)

// CookieConfig holds session cookie settings.
type CookieConfig struct {
	Name   string
	Domain string // Empty string = current host only
	Secure bool   // HTTPS only
	MaxAge time.Duration
}

// SetSessionCookie sets the opaque session identifier in an HTTP-only,
// SameSite=Strict cookie whose lifetime matches the idle window.
func SetSessionCookie(w http.ResponseWriter, sessionID string, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     config.Name,
		Value:    sessionID,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(config.MaxAge),
		MaxAge:   int(config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie clears the session cookie.
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     config.Name,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, cookie)
}

// GetSessionCookie retrieves the session identifier from the request, or ""
// when the cookie is absent.
func GetSessionCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
