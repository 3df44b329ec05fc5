package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
)

var (
	// ErrInvalidTransition marks a status change the workflow does not allow
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidStage marks an unknown approval stage
	ErrInvalidStage = errors.New("invalid approval stage")
	// ErrInvalidPriority marks a priority outside low/medium/high/critical
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrInvalidCategory marks an unknown category
	ErrInvalidCategory = errors.New("invalid category")
	// ErrValidation marks a rejected input value
	ErrValidation = errors.New("validation failed")
	// ErrInvalidPatch marks a merge patch that cannot be applied
	ErrInvalidPatch = errors.New("invalid patch")
	// ErrInvalidFilter marks a filter expression that does not compile or evaluate
	ErrInvalidFilter = errors.New("invalid filter expression")
)

// InvalidTransitionError carries the attempted edge and the allowed set
type InvalidTransitionError struct {
	RequestID string
	From      models.RequestStatus
	To        models.RequestStatus
	Allowed   []models.RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	list := strings.Join(allowed, ", ")
	if list == "" {
		list = "none"
	}
	return fmt.Sprintf("cannot transition request %s from %s to %s (allowed: %s)", e.RequestID, e.From, e.To, list)
}

// Unwrap lets errors.Is match ErrInvalidTransition
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
