// Package service holds the permission-checked operations on categories,
// lists and tasks, plus the background jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"taskshare/internal/access"
	"taskshare/internal/model"
)

// ErrInvalidInput is matched by every ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError reports a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Authorizer resolves permission decisions.
type Authorizer interface {
	Resolve(ctx context.Context, actorID uint, kind model.Kind, id uint, action access.Action) (access.Decision, error)
}

func authorize(ctx context.Context, authz Authorizer, actorID uint, kind model.Kind, id uint, action access.Action) (access.Decision, error) {
	decision, err := authz.Resolve(ctx, actorID, kind, id, action)
	if err != nil {
		return decision, err
	}
	return decision, decision.Err()
}

// cleanName trims name and checks it is present and at most max runes long.
func cleanName(field, name string, max int) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", &ValidationError{Field: field, Message: "is required"}
	case utf8.RuneCountInString(name) > max:
		return "", &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return name, nil
}

// missing maps a row that vanished after authorization to a not-found error.
func missing(kind model.Kind, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &access.NotFoundError{Kind: kind, ID: id}
	}
	return err
}
