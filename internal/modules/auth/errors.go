package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is the only login failure callers see. The
// specific reasons wrap it and are logged.
var ErrInvalidCredentials = errors.New("invalid credentials")

var (
	ErrEmailNotFound     = fmt.Errorf("%w: email not found", ErrInvalidCredentials)
	ErrOAuthOnlyAccount  = fmt.Errorf("%w: account has no password", ErrInvalidCredentials)
	ErrIncorrectPassword = fmt.Errorf("%w: incorrect password", ErrInvalidCredentials)
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrEmailNotVerified   = errors.New("email is not verified by the identity provider")
	ErrOAuthDisabled      = errors.New("oauth login is not configured")
	ErrInvalidOAuthState  = errors.New("invalid oauth state")
)
