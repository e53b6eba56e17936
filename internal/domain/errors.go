package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateProviderID = errors.New("provider account already linked")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrProvider            = errors.New("identity provider error")
)
