// Package authz decides whether a caller's roles satisfy an operation's
// required roles.
package authz

import (
	"io"
	"net/http"
	"time"

	"learnhub/internal/domain"
)

// DrainTimeout bounds how long a denied request may spend draining its body.
const DrainTimeout = time.Second

// Allowed reports whether have intersects required. An empty requirement
// allows everyone.
func Allowed(required []domain.Role, have []domain.Role) bool {
	if len(required) == 0 {
		return true
	}
	return domain.Roles(have).HasAny(required...)
}

// DrainBody reads body to EOF or error, giving up after timeout. Read errors
// count as drained.
func DrainBody(body io.ReadCloser, timeout time.Duration) {
	if body == nil || body == http.NoBody {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(io.Discard, body)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	}
}

// Policy maps an operation name to the roles allowed to perform it.
type Policy map[string][]domain.Role

// Roles returns the requirement for op. Unknown operations require nothing.
func (p Policy) Roles(op string) []domain.Role {
	return p[op]
}
