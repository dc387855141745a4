package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/showcaselive/showtime/internal/errors"
)

// APIError is the JSON error body for all failed requests.
type APIError struct {
	Error string `json:"error"`
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// respondError maps an application error onto an HTTP status and JSON body.
func respondError(w http.ResponseWriter, err error) {
	status, body := toAPIError(err)
	respondJSON(w, status, body)
}

// toAPIError converts error kinds to HTTP statuses. Internal errors never
// leak their underlying message.
func toAPIError(err error) (int, APIError) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperrors.ErrNotFound:
			return http.StatusNotFound, APIError{Error: appErr.Message}
		case apperrors.ErrValidation, apperrors.ErrInvalidInput:
			return http.StatusBadRequest, APIError{Error: appErr.Message}
		case apperrors.ErrConflict:
			return http.StatusConflict, APIError{Error: appErr.Message}
		case apperrors.ErrPrecondition:
			return http.StatusConflict, APIError{Error: appErr.Message}
		}
	}
	return http.StatusInternalServerError, APIError{Error: "internal error"}
}

// decodeJSON parses the request body into dst. A missing body leaves dst at
// its zero value so requests with only optional fields can omit it entirely.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.InvalidInputf("invalid request body: %v", err)
	}
	return nil
}
