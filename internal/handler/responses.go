// Package handler provides the HTTP surface of Meridian Identity.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/prn-tf/meridian-identity/internal/domain"
)

// Response statuses used in the body envelope.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// envelope is the common response body shape.
type envelope struct {
	Status  string                `json:"status"`
	Message string                `json:"message,omitempty"`
	Token   string                `json:"token,omitempty"`
	User    *domain.User          `json:"user,omitempty"`
	Profile *domain.PublicProfile `json:"profile,omitempty"`
	Errors  []fieldError          `json:"errors,omitempty"`
}

// fieldError carries a single validation failure.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// writeJSON writes a JSON body with the given status code.
func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// writeSuccess writes a success envelope.
func writeSuccess(w http.ResponseWriter, code int, body envelope) {
	body.Status = statusSuccess
	writeJSON(w, code, body)
}

// writeFail writes a failure envelope with a user-facing message.
func writeFail(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Status: statusFail, Message: message})
}

// writeInternalError hides the cause behind a generic message.
func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, envelope{
		Status:  statusError,
		Message: "Something went wrong",
	})
}

// writeValidationErrors writes a 422 with per-field messages.
func writeValidationErrors(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, envelope{
		Status: statusFail,
		Errors: errs,
	})
}
