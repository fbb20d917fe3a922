package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_IssueAndVerify(t *testing.T) {
	svc := New("test-secret", 15*time.Minute, "learnhub")

	token, err := svc.Issue(42, "tutor@school.org", []string{"tutor", "parent"})
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "tutor@school.org", claims.Email)
	assert.Equal(t, []string{"tutor", "parent"}, claims.Roles)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestService_VerifyExpired(t *testing.T) {
	svc := New("test-secret", -time.Minute, "")

	token, err := svc.Issue(1, "a@b.io", nil)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestService_VerifyWrongKey(t *testing.T) {
	token, err := New("key-one", time.Minute, "").Issue(1, "a@b.io", nil)
	require.NoError(t, err)

	_, err = New("key-two", time.Minute, "").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestService_VerifyGarbage(t *testing.T) {
	_, err := New("k", time.Minute, "").Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestService_VerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		Email: "a@b.io",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = New("k", time.Minute, "").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestService_VerifyIssuerMismatch(t *testing.T) {
	token, err := New("k", time.Minute, "other").Issue(1, "a@b.io", nil)
	require.NoError(t, err)

	_, err = New("k", time.Minute, "learnhub").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
