package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

type apiError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, apiError{Code: code, Message: message})
}

// classify maps an error kind to a status and an error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrRevocationFailed):
		return http.StatusInternalServerError, "REVOCATION_FAILED"
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "TOKEN_EXPIRED"
	case errors.Is(err, common.ErrTokenRevoked):
		return http.StatusUnauthorized, "TOKEN_REVOKED"
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN"
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// fail writes err as an API error. Internal details of 5xx errors are
// logged, not returned.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = common.ErrorInternal.Error()
		if code == "REVOCATION_FAILED" {
			msg = common.ErrRevocationFailed.Error()
		}
	case http.StatusServiceUnavailable:
		s.logger.Error(r.Context(), "store unavailable", "path", r.URL.Path, "error", err)
		msg = common.ErrStoreUnavailable.Error()
	}

	writeError(w, status, code, msg)
}
