package handlers

import (
	"compare-app/pkg/validation"
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorResponse is the standard JSON error body. ErrorCode carries a
// machine-readable rejection reason when one applies.
type ErrorResponse struct {
	Error     string `json:"error,omitempty"`
	Code      int    `json:"code"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message"`
}

// sendError sends a standardized JSON error response
func sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

// sendCodedError sends a JSON error carrying a machine-readable code
func sendCodedError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Code:      status,
		ErrorCode: code,
		Message:   message,
	})
}

// sendValidationError maps a request validation failure to its HTTP status
func sendValidationError(w http.ResponseWriter, err error) {
	var reqErr *validation.RequestError
	if !errors.As(err, &reqErr) {
		sendError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	status := http.StatusBadRequest
	switch reqErr.Code {
	case validation.CodeModelNotAllowed:
		status = http.StatusForbidden
	case validation.CodeQuotaExceeded:
		status = http.StatusTooManyRequests
	case validation.CodeRunExists:
		status = http.StatusConflict
	}
	sendCodedError(w, status, reqErr.Code, reqErr.Message)
}
