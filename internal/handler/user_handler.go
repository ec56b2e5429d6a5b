package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-identity/internal/domain"
	"github.com/prn-tf/meridian-identity/internal/service"
	"github.com/prn-tf/meridian-identity/internal/token"
)

// emailPattern is a loose shape check used only to sniff which
// identity form a query value is. Real email validation happens at
// registration time.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserHandler serves the /users/* routes.
type UserHandler struct {
	users  *service.UserService
	logger zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With().Str("handler", "user").Logger(),
	}
}

// Me handles GET /users/me. Requires the auth guard.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	writeSuccess(w, http.StatusOK, envelope{User: user})
}

// Get handles GET /users/get?user=<login|email|id>. The single query
// value is sniffed into an identity form at this boundary; everything
// below works on the explicit union.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	value := strings.TrimSpace(r.URL.Query().Get("user"))
	if value == "" {
		writeFail(w, http.StatusBadRequest, "No such user")
		return
	}

	user, err := h.users.Get(r.Context(), sniffIdentity(value))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeFail(w, http.StatusBadRequest, "No such user")
			return
		}
		writeInternalError(w)
		return
	}

	profile := user.Public()
	writeSuccess(w, http.StatusOK, envelope{Profile: &profile})
}

// updateLoginRequest is the body of PUT /users/update/login.
type updateLoginRequest struct {
	Login string `json:"login"`
}

// UpdateLogin handles PUT /users/update/login. Requires the auth guard.
func (h *UserHandler) UpdateLogin(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	var req updateLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.users.UpdateLogin(r.Context(), domain.ByID(user.ID), req.Login)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidLogin):
			writeValidationErrors(w, []fieldError{{Field: "login", Message: "invalid login"}})
		case errors.Is(err, domain.ErrUserNotFound):
			writeFail(w, http.StatusBadRequest, "No such user to update login")
		case errors.Is(err, domain.ErrUserAlreadyExists):
			writeFail(w, http.StatusConflict, "User already exists")
		default:
			writeInternalError(w)
		}
		return
	}

	writeSuccess(w, http.StatusOK, envelope{Message: "Login updated successfully"})
}

// updateEmailRequest is the body of PUT /users/update/email.
type updateEmailRequest struct {
	Email string `json:"email"`
}

// UpdateEmail handles PUT /users/update/email. Requires the auth guard.
func (h *UserHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	var req updateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.users.UpdateEmail(r.Context(), domain.ByID(user.ID), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEmail):
			writeValidationErrors(w, []fieldError{{Field: "email", Message: "invalid email"}})
		case errors.Is(err, domain.ErrUserNotFound):
			writeFail(w, http.StatusBadRequest, "No such user to update email")
		case errors.Is(err, domain.ErrUserAlreadyExists):
			writeFail(w, http.StatusConflict, "User already exists")
		default:
			writeInternalError(w)
		}
		return
	}

	writeSuccess(w, http.StatusOK, envelope{Message: "Email updated successfully"})
}

// updatePasswordRequest is the body of PUT /users/update/password.
type updatePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// UpdatePassword handles PUT /users/update/password. Requires the auth
// guard plus the old password.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.users.UpdatePassword(r.Context(), service.UpdatePasswordInput{
		UserID:      user.ID,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPassword):
			writeValidationErrors(w, []fieldError{{Field: "password", Message: "password length should be 8-32 symbols and not contents spaces"}})
		case errors.Is(err, domain.ErrPasswordMismatch):
			writeFail(w, http.StatusBadRequest, "Password is incorrect")
		case errors.Is(err, domain.ErrUserNotFound):
			writeFail(w, http.StatusBadRequest, "No such user to update password")
		default:
			writeInternalError(w)
		}
		return
	}

	writeSuccess(w, http.StatusOK, envelope{Message: "Password updated successfully"})
}

// Delete handles DELETE /users/delete. Requires the auth guard. The
// session cookies are cleared since the account behind them is gone.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "You are not logged in")
		return
	}

	if err := h.users.Delete(r.Context(), domain.ByID(user.ID)); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeFail(w, http.StatusBadRequest, "No such user to delete")
			return
		}
		writeInternalError(w)
		return
	}

	token.ClearSessionCookies(w)
	writeSuccess(w, http.StatusOK, envelope{Message: "User deleted successfully"})
}

// sniffIdentity classifies a raw query value as email, id, or login.
func sniffIdentity(value string) domain.Identity {
	if emailPattern.MatchString(value) {
		return domain.ByEmail(value)
	}
	if _, err := uuid.Parse(value); err == nil {
		return domain.ByID(value)
	}
	return domain.ByLogin(value)
}
