package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/service"
	"github.com/prn-tf/meridian-identity/internal/token"
)

// AuthHandler serves the /auth/* routes.
type AuthHandler struct {
	auth   *service.AuthService
	logger zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With().Str("handler", "auth").Logger(),
	}
}

// registerRequest is the body of POST /auth/register.
type registerRequest struct {
	Name            string `json:"name"`
	Surname         string `json:"surname"`
	Login           string `json:"login"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Photo           string `json:"photo,omitempty"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	out, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:            req.Name,
		Surname:         req.Surname,
		Login:           req.Login,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Photo:           req.Photo,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPasswordMismatch):
			writeFail(w, http.StatusBadRequest, "Passwords do not match")
		case errors.Is(err, domain.ErrUserAlreadyExists):
			writeFail(w, http.StatusConflict, "User already exists")
		case isValidationError(err):
			writeValidationErrors(w, validationErrors(err))
		default:
			writeInternalError(w)
		}
		return
	}

	writeSuccess(w, http.StatusCreated, envelope{
		Message: "Verification token successfully sent to your email",
		User:    out.User,
	})
}

// Verify handles GET /auth/verify/{key}.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := h.auth.Confirm(r.Context(), key); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			writeFail(w, http.StatusBadRequest, "No such user to confirm registration")
		case errors.Is(err, domain.ErrUserAlreadyActive):
			writeFail(w, http.StatusBadRequest, "This user is already activated")
		case errors.Is(err, domain.ErrInvalidToken):
			writeFail(w, http.StatusBadRequest, "Token is invalid or has expired")
		default:
			writeInternalError(w)
		}
		return
	}

	writeSuccess(w, http.StatusOK, envelope{Message: "Account verified successfully"})
}

// loginRequest is the body of POST /auth/login. Either login or email
// identifies the account.
type loginRequest struct {
	Login    string `json:"login,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Login == "" && req.Email == "" {
		writeFail(w, http.StatusBadRequest, "Please provide login or email")
		return
	}

	out, err := h.auth.Login(r.Context(), service.LoginInput{
		Login:    req.Login,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeFail(w, http.StatusUnauthorized, "Incorrect Email or Password")
		case errors.Is(err, domain.ErrUserNotActive):
			writeFail(w, http.StatusUnauthorized, "Please verify your email address")
		default:
			writeInternalError(w)
		}
		return
	}

	token.SetSessionCookies(w, out.Access, out.Refresh)
	writeSuccess(w, http.StatusOK, envelope{Token: out.Access.Value})
}

// Refresh handles GET /auth/refresh. Only the access token is
// replaced; the refresh cookie stays as issued at login.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := token.ReadToken(r, token.RefreshCookie)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "Please provide refresh token")
		return
	}

	out, err := h.auth.Refresh(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidToken):
			writeFail(w, http.StatusBadRequest, "Token is invalid or has expired")
		case errors.Is(err, domain.ErrUserNotFound):
			writeFail(w, http.StatusBadRequest, "The user belonging to this token no longer exist")
		default:
			writeInternalError(w)
		}
		return
	}

	token.SetAccessCookies(w, out.Access)
	writeSuccess(w, http.StatusOK, envelope{Token: out.Access.Value})
}

// Logout handles GET /auth/logout. Requires the auth guard.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), jtiFromContext(r.Context()))
	token.ClearSessionCookies(w)
	writeSuccess(w, http.StatusOK, envelope{})
}

// isValidationError reports whether err is one of the field-level
// validation sentinels.
func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidLogin) ||
		errors.Is(err, domain.ErrInvalidEmail) ||
		errors.Is(err, domain.ErrInvalidPassword)
}

// validationErrors maps a validation sentinel to its field message.
func validationErrors(err error) []fieldError {
	switch {
	case errors.Is(err, domain.ErrInvalidLogin):
		return []fieldError{{Field: "login", Message: "invalid login"}}
	case errors.Is(err, domain.ErrInvalidEmail):
		return []fieldError{{Field: "email", Message: "invalid email"}}
	case errors.Is(err, domain.ErrInvalidPassword):
		return []fieldError{{Field: "password", Message: "password length should be 8-32 symbols and not contents spaces"}}
	}
	return nil
}
