// Package service implements the marketplace use cases on top of the
// repositories. Every exported error returned from this package wraps
// one of the sentinels below so handlers can map it with errors.Is.
package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream failure")

	ErrAlreadyOwned = fmt.Errorf("%w: note already owned", ErrConflict)
	ErrSelfPurchase = fmt.Errorf("%w: cannot purchase your own note", ErrConflict)
	ErrEmailTaken   = fmt.Errorf("%w: email already registered", ErrConflict)

	ErrBelowMinimum        = errors.New("available balance below withdrawal minimum")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}
