package token

import (
	"net/http"
	"strings"

	"github.com/prn-tf/meridian-identity/internal/domain"
)

// Cookie names for the session.
const (
	// AccessCookie carries the access token. HttpOnly.
	AccessCookie = "access_token"

	// RefreshCookie carries the refresh token. HttpOnly.
	RefreshCookie = "refresh_token"

	// LoggedInCookie is a UI hint readable by frontend scripts. It
	// carries no trust and is not HttpOnly.
	LoggedInCookie = "logged_in"
)

// SetSessionCookies sets the access, refresh, and logged_in cookies on a
// successful login.
func SetSessionCookies(w http.ResponseWriter, access, refresh Token) {
	http.SetCookie(w, sessionCookie(AccessCookie, access.Value, access, true))
	http.SetCookie(w, sessionCookie(RefreshCookie, refresh.Value, refresh, true))
	http.SetCookie(w, sessionCookie(LoggedInCookie, "true", access, false))
}

// SetAccessCookies refreshes the access and logged_in cookies after a
// token refresh. The refresh token cookie is left untouched: refresh
// tokens are not rotated.
func SetAccessCookies(w http.ResponseWriter, access Token) {
	http.SetCookie(w, sessionCookie(AccessCookie, access.Value, access, true))
	http.SetCookie(w, sessionCookie(LoggedInCookie, "true", access, false))
}

// ClearSessionCookies expires all three session cookies. Tokens already
// issued remain cryptographically valid until natural expiry; server-side
// revocation, when enabled, is handled by the deny-list.
func ClearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie, LoggedInCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name != LoggedInCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// ReadToken extracts a token from the named cookie, falling back to the
// Authorization bearer header for the access token. Returns
// domain.ErrMissingToken when neither is present.
func ReadToken(r *http.Request, cookieName string) (string, error) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	if cookieName == AccessCookie {
		header := r.Header.Get("Authorization")
		if scheme, value, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") && value != "" {
			return value, nil
		}
	}

	return "", domain.ErrMissingToken
}

// sessionCookie builds a cookie whose max-age and expiry both follow the
// token TTL.
func sessionCookie(name, value string, t Token, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(t.TTL.Seconds()),
		Expires:  t.ExpiresAt,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	}
}
