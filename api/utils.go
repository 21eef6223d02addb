package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"ruleguard/core"
	"ruleguard/validation"
)

var (
	dbConnectionPattern = regexp.MustCompile(`(?:sqlite|file|postgres|mysql)://[^\s"']+`)
	filePathPattern     = regexp.MustCompile(`(?:[A-Za-z]:\\|/)(?:[^\\/:*?"<>|\s]+[\\/])+[^\\/:*?"<>|\s]+`)
	privateIPPattern    = regexp.MustCompile(`\b(?:10|127)(?:\.\d{1,3}){3}(?::\d{1,5})?\b|\b172\.(?:1[6-9]|2[0-9]|3[01])(?:\.\d{1,3}){2}(?::\d{1,5})?\b|\b192\.168(?:\.\d{1,3}){2}(?::\d{1,5})?\b`)
	stackTracePattern   = regexp.MustCompile(`(?m)^goroutine \d+.*$`)
)

// errorResponse is the body of every non-2xx response
type errorResponse struct {
	StatusCode int              `json:"status_code"`
	Message    string           `json:"message"`
	Path       *validation.Path `json:"path,omitempty"`
	Kind       validation.Kind  `json:"kind,omitempty"`
}

// sanitizeErrorMessage removes sensitive information from error messages before sending to clients
func sanitizeErrorMessage(message string) string {
	message = dbConnectionPattern.ReplaceAllString(message, "[DATABASE_CONNECTION]")
	message = filePathPattern.ReplaceAllString(message, "[FILE_PATH]")
	message = privateIPPattern.ReplaceAllString(message, "[PRIVATE_IP]")
	message = stackTracePattern.ReplaceAllString(message, "[STACK_TRACE]")

	if len(message) > core.MaxErrorMessageLength {
		message = message[:core.MaxErrorMessageLength-3] + "..."
	}
	return message
}

// writeError logs the full error and writes a sanitized JSON error body
func (a *API) writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	fields := []interface{}{"status_code", statusCode, "request_id", requestIDFrom(r.Context())}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	if statusCode >= http.StatusInternalServerError {
		a.logger.Errorw(message, fields...)
	} else {
		a.logger.Debugw(message, fields...)
	}

	a.respondJSON(w, errorResponse{StatusCode: statusCode, Message: sanitizeErrorMessage(message)}, statusCode)
}

// writeValidationError answers a rejected payload with 400 and the violation path.
// The message is the validator's own text and is not sanitized.
func (a *API) writeValidationError(w http.ResponseWriter, verr *validation.ValidationError) {
	a.respondJSON(w, validationErrorResponse(verr), http.StatusBadRequest)
}

func validationErrorResponse(verr *validation.ValidationError) errorResponse {
	path := append(validation.Path{}, verr.Path...)
	return errorResponse{
		StatusCode: http.StatusBadRequest,
		Message:    verr.Error(),
		Path:       &path,
		Kind:       verr.Kind,
	}
}

// limitBody caps the request body at the configured size
func (a *API) limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.API.MaxBodyBytes)
}

// writeDecodeError maps a body decoding failure to 413 or 400
func (a *API) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		a.writeError(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err)
	case errors.Is(err, validation.ErrNotObject):
		a.writeError(w, r, http.StatusBadRequest, err.Error(), err)
	default:
		a.writeError(w, r, http.StatusBadRequest, "Invalid JSON body", err)
	}
}

// notFoundMessage renders the lookup key the way clients sent it
func notFoundMessage(field, value string) string {
	return fmt.Sprintf("%s: %q not found", field, value)
}
