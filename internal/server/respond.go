package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"interviewd/internal/auth"
	"interviewd/internal/interview"
	"interviewd/internal/logging"
)

// writeJSON serializes v with the given status. Encoding failures are
// logged; the status line has already gone out by then.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.HTTPDebug("response encode failed: %v", err)
	}
}

// writeError emits the uniform {"detail": ...} error body.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// decode parses the request body into v. A false return means the error
// response has already been written.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// mapError translates domain sentinels to HTTP status codes. Everything
// unrecognized is a 500; per the propagation policy such errors should be
// rare, since upstream and persistence failures are absorbed below this
// layer.
func mapError(w http.ResponseWriter, err error) {
	var verr *interview.ValidationError
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Unknown session_id; call /start first")
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "Need: "+strings.Join(verr.Missing, ", "))
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "User already exists")
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
