package domain

import "errors"

var (
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidName         = errors.New("name must be between 2 and 100 characters")
	ErrInvalidRole         = errors.New("invalid role")
	ErrNoRoles             = errors.New("user must have at least one role")
	ErrPasswordRequired    = errors.New("password is required for local accounts")
	ErrInvalidMaterialType = errors.New("invalid material type")
	ErrInvalidTitle        = errors.New("title is required")
	ErrDuplicateEmail      = errors.New("email already registered")
)
