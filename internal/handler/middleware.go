package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/token"
)

// contextKey is a private type for request context values.
type contextKey int

const (
	userContextKey contextKey = iota
	jtiContextKey
)

// UserFromContext returns the authenticated user set by the auth guard.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok
}

// jtiFromContext returns the access token ID set by the auth guard.
func jtiFromContext(ctx context.Context) string {
	jti, _ := ctx.Value(jtiContextKey).(string)
	return jti
}

// authenticator resolves a raw access token to its user.
type authenticator interface {
	Authenticate(ctx context.Context, rawAccess string) (*domain.User, string, error)
}

// AuthGuard requires a valid access token on the request. Each
// failure mode carries its own message.
func AuthGuard(auth authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := token.ReadToken(r, token.AccessCookie)
			if err != nil {
				writeFail(w, http.StatusUnauthorized, "You are not logged in")
				return
			}

			user, jti, err := auth.Authenticate(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrMissingToken):
					writeFail(w, http.StatusUnauthorized, "You are not logged in")
				case errors.Is(err, domain.ErrInvalidToken):
					writeFail(w, http.StatusUnauthorized, "Token is invalid or has expired")
				case errors.Is(err, domain.ErrUserNotFound):
					writeFail(w, http.StatusUnauthorized, "User no longer exist")
				case errors.Is(err, domain.ErrUserNotActive):
					writeFail(w, http.StatusUnauthorized, "You are not verified")
				default:
					writeInternalError(w)
				}
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = context.WithValue(ctx, jtiContextKey, jti)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusWriter captures the response code for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLogging logs each request at debug level and failures at warn.
func RequestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			event := logger.Debug()
			if sw.status >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("request")
		})
	}
}

// Recovery converts panics into 500 responses.
func Recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Interface("panic", rec).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("panic recovered")
					writeInternalError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORSConfig holds settings for the CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// CORS allows the configured browser origins to call the API with
// credentials. Cookies require an exact origin echo, never a wildcard.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	originSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		originSet[o] = struct{}{}
	}
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := originSet[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Vary", "Origin")
				}
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize caps request body reads.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
