package access

import (
	"errors"
	"fmt"

	"taskshare/internal/model"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrAccessDenied = errors.New("access denied")
)

// NotFoundError reports a resource id that does not resolve.
type NotFoundError struct {
	Kind model.Kind
	ID   uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind.Label(), e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DeniedError carries the refusing decision.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string { return e.Decision.Message() }

func (e *DeniedError) Is(target error) bool { return target == ErrAccessDenied }
