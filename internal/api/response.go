package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// APIError is an error that already knows its HTTP status. Handlers return it;
// handle is the only place that renders it.
type APIError struct {
	Status  int
	Message string
	Errors  []string
	// Err is the underlying cause, logged but never sent to the client.
	Err error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

type SuccessResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type ErrorResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respond(w http.ResponseWriter, status int, data any, message string) {
	if data == nil {
		data = struct{}{}
	}
	writeJSON(w, status, SuccessResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// writeError renders err in the error envelope. Anything that is not an
// *APIError is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = internalError(err)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
	}

	details := apiErr.Errors
	if details == nil {
		details = []string{}
	}

	writeJSON(w, apiErr.Status, ErrorResponse{
		StatusCode: apiErr.Status,
		Message:    apiErr.Message,
		Success:    false,
		Errors:     details,
	})
}

func badRequest(message string, details ...string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message, Errors: details}
}

func unauthorized(message string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Message: message}
}

func forbidden(message string) *APIError {
	return &APIError{Status: http.StatusForbidden, Message: message}
}

func notFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: message}
}

func conflict(message string) *APIError {
	return &APIError{Status: http.StatusConflict, Message: message}
}

func payloadTooLarge(message string) *APIError {
	return &APIError{Status: http.StatusRequestEntityTooLarge, Message: message}
}

func tooManyRequests(message string) *APIError {
	return &APIError{Status: http.StatusTooManyRequests, Message: message}
}

func internalError(cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Message: "An internal error occurred",
		Err:     cause,
	}
}
