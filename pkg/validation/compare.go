package validation

import (
	"fmt"

	"github.com/google/uuid"
)

// Machine-readable error codes for rejected compare requests
const (
	CodeInvalidRequest  = "invalid_request"
	CodeTooManyModels   = "too_many_models"
	CodeUnknownModel    = "unknown_model"
	CodeModelNotAllowed = "model_not_allowed"
	CodeQuotaExceeded   = "quota_exceeded"
	CodeRunExists       = "run_exists"
)

// RequestError is a validation failure with a machine-readable code
type RequestError struct {
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// NewRequestError creates a RequestError
func NewRequestError(code, format string, args ...interface{}) *RequestError {
	return &RequestError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CompareRequestValidator validates compare run requests
type CompareRequestValidator struct {
	maxModels int
}

// NewCompareRequestValidator creates a validator with the configured model cap
func NewCompareRequestValidator(maxModels int) *CompareRequestValidator {
	return &CompareRequestValidator{maxModels: maxModels}
}

// ValidateChatID validates the chat id
func (v *CompareRequestValidator) ValidateChatID(chatID string) error {
	if chatID == "" {
		return NewRequestError(CodeInvalidRequest, "chatId is required")
	}
	if _, err := uuid.Parse(chatID); err != nil {
		return NewRequestError(CodeInvalidRequest, "chatId must be a valid UUID")
	}
	return nil
}

// ValidatePrompt validates the prompt text
func (v *CompareRequestValidator) ValidatePrompt(prompt string) error {
	if prompt == "" {
		return NewRequestError(CodeInvalidRequest, "prompt cannot be empty")
	}
	return nil
}

// ValidateModelIDs validates count and uniqueness of the requested models
func (v *CompareRequestValidator) ValidateModelIDs(modelIDs []string) error {
	if len(modelIDs) == 0 {
		return NewRequestError(CodeInvalidRequest, "at least one model is required")
	}
	if len(modelIDs) > v.maxModels {
		return NewRequestError(CodeTooManyModels, "at most %d models per compare, got %d", v.maxModels, len(modelIDs))
	}

	seen := make(map[string]bool, len(modelIDs))
	for _, id := range modelIDs {
		if id == "" {
			return NewRequestError(CodeInvalidRequest, "model ids cannot be empty")
		}
		if seen[id] {
			return NewRequestError(CodeInvalidRequest, "duplicate model id: %s", id)
		}
		seen[id] = true
	}
	return nil
}

// ValidateRunID validates the optional client-supplied run id
func (v *CompareRequestValidator) ValidateRunID(runID string) error {
	if runID == "" {
		return nil
	}
	if _, err := uuid.Parse(runID); err != nil {
		return NewRequestError(CodeInvalidRequest, "runId must be a valid UUID")
	}
	return nil
}

// ValidateStartRequest validates a complete compare start request
func (v *CompareRequestValidator) ValidateStartRequest(chatID, prompt string, modelIDs []string, runID string) error {
	if err := v.ValidateChatID(chatID); err != nil {
		return err
	}
	if err := v.ValidatePrompt(prompt); err != nil {
		return err
	}
	if err := v.ValidateModelIDs(modelIDs); err != nil {
		return err
	}
	return v.ValidateRunID(runID)
}

// ValidateCancelRequest validates a cancel request
func (v *CompareRequestValidator) ValidateCancelRequest(runID string) error {
	if runID == "" {
		return NewRequestError(CodeInvalidRequest, "runId is required")
	}
	if _, err := uuid.Parse(runID); err != nil {
		return NewRequestError(CodeInvalidRequest, "runId must be a valid UUID")
	}
	return nil
}
