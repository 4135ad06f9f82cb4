// Package shop holds the contracts shared by the session and the cart and
// wishlist reconcilers.
package shop

import (
	"context"
	"errors"
)

var (
	ErrAuthRequired   = errors.New("please login to continue")
	ErrInvalidProduct = errors.New("product id is required")
)

// Gate reports whether a shopper is signed in. Every cart and wishlist
// mutation checks it first.
type Gate interface {
	Authenticated() bool
}

// SessionObserver is told about session transitions. SessionEnded must
// finish its state reset before returning.
type SessionObserver interface {
	SessionStarted(ctx context.Context)
	SessionEnded()
}

// MutationError is a rejected cart or wishlist change. Message is meant to be
// shown to the shopper as is.
type MutationError struct {
	Op      string
	Message string
	Err     error
}

func (e *MutationError) Error() string {
	return e.Message
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// AuthError is a failed login or signup.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
