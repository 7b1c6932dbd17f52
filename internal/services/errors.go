package services

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrValidation marks input that is missing required fields.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStatus marks a status outside pending, confirmed and cancelled.
	ErrInvalidStatus = errors.New("invalid appointment status")
	// ErrNotFound marks lookups of unknown records.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned by Signup for an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned by Login for unknown users and bad passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for refresh tokens that are malformed, expired or revoked.
	ErrInvalidToken = errors.New("invalid or expired token")
)

var validate = validator.New()
