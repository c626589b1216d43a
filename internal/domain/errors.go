package domain

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPostNotFound      = errors.New("post not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidInput marks a write rejected by a store constraint other than
	// uniqueness, e.g. a NULL in a required column.
	ErrInvalidInput = errors.New("invalid input")
)
