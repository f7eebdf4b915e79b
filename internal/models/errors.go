package models

import (
	"context"
	"errors"
)

// Error kinds. Packages wrap these with fmt.Errorf("...: %w", ...).
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrCollaborator  = errors.New("collaborator error")
)

// Error codes
const (
	ErrorValidation          = "VALIDATION_ERROR"
	ErrorNotFound            = "NOT_FOUND"
	ErrorConfiguration       = "CONFIGURATION_ERROR"
	ErrorCollaborator        = "COLLABORATOR_ERROR"
	ErrorCollaboratorTimeout = "COLLABORATOR_TIMEOUT"
	ErrorInternal            = "INTERNAL_ERROR"
)

// Code maps an error to its wire error code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return ErrorValidation
	case errors.Is(err, ErrNotFound):
		return ErrorNotFound
	case errors.Is(err, ErrConfiguration):
		return ErrorConfiguration
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCollaboratorTimeout
	case errors.Is(err, ErrCollaborator):
		return ErrorCollaborator
	default:
		return ErrorInternal
	}
}
