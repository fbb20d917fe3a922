package refreshtoken

import (
	"errors"
	"fmt"

	"learnhub/internal/pkg/hasher"
)

// ErrInvalidToken is the umbrella for every validation failure; the
// specific causes below wrap it so callers can match either level.
var ErrInvalidToken = errors.New("invalid refresh token")

var (
	ErrMalformedToken = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrTokenNotFound  = fmt.Errorf("%w: not found", ErrInvalidToken)
	ErrTokenRevoked   = fmt.Errorf("%w: revoked", ErrInvalidToken)
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
)

var (
	ErrUserNotFound     = errors.New("user not found for refresh token")
	ErrStoreUnavailable = errors.New("token store unavailable")
	ErrHashingFailure   = hasher.ErrHashingFailure
)
