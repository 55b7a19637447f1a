package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/petauth/internal/common"
)

// envelope is the body of every response.
type envelope struct {
	Success  bool       `json:"success"`
	Response any        `json:"response"`
	Error    *errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, response any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Response: response})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Error: &errorBody{Message: message, Status: status}})
}

// statusFor maps the error taxonomy onto HTTP. Messages never tell which
// credential was wrong.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	case errors.Is(err, common.ErrBadCredentials):
		return http.StatusUnauthorized, "authentication failed"
	case errors.Is(err, common.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, common.ErrSessionExpired):
		return http.StatusUnauthorized, "session expired"
	case errors.Is(err, common.ErrRefreshTokenMismatch),
		errors.Is(err, common.ErrSignatureInvalid),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
