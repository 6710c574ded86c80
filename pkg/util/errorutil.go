package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors. UserMessage is what the
// actor sees in chat; Message is the operator-facing description.
type DomainError struct {
	Code        string
	Message     string
	UserMessage string
	HTTPStatus  int
	Details     map[string]any
	Err         error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, UserMessage: message, HTTPStatus: status, Details: details}
}

// NewForbidden marks an authorization failure: reported inline, no state change.
func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

// NewUnauthorized marks a missing or invalid credential on the ops API.
func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

// NewPrecondition marks a guard failure such as a wrong channel type,
// an already-closed ticket or a duplicate open ticket.
func NewPrecondition(message string, details map[string]any) error {
	return NewDomainError("PRECONDITION_FAILED", message, http.StatusConflict, details)
}

// NewValidationError marks malformed caller input.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewCollaboratorError wraps a platform failure (the chat service denied
// a permission-requiring action). Callers report it and continue.
func NewCollaboratorError(message string, err error) error {
	return &DomainError{
		Code:        "COLLABORATOR_FAILED",
		Message:     message,
		UserMessage: message,
		HTTPStatus:  http.StatusBadGateway,
		Err:         err,
	}
}

// NewStorageError wraps a persistence failure.
func NewStorageError(message string, err error) error {
	return &DomainError{
		Code:        "STORAGE_FAILED",
		Message:     message,
		UserMessage: "An error occurred while saving your request.",
		HTTPStatus:  http.StatusInternalServerError,
		Err:         err,
	}
}

// NewInternalError wraps an unclassified failure behind a generic user message.
func NewInternalError(err error) error {
	return &DomainError{
		Code:        "INTERNAL_ERROR",
		Message:     "internal error",
		UserMessage: "An error occurred while processing your command.",
		HTTPStatus:  http.StatusInternalServerError,
		Err:         err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// UserFacing returns the short message shown to the actor in chat.
func UserFacing(err error) string {
	de := ToDomainError(err)
	if de == nil {
		return ""
	}
	if de.UserMessage != "" {
		return de.UserMessage
	}
	return "An error occurred while processing your command."
}
