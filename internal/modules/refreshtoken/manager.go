// Package refreshtoken implements the refresh-token session lifecycle:
// issuance, validation with reuse detection, single-use rotation and
// revocation.
package refreshtoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"learnhub/internal/domain"
	"learnhub/internal/events"
	"learnhub/internal/pkg/logging"
)

const (
	DefaultTTLDays = 30

	// RevokedMessage is returned by RevokeByID whether or not the id existed.
	RevokedMessage = "Session has been revoked successfully"

	secretBytes = 16
)

type Hasher interface {
	Hash(ctx context.Context, secret string) (string, error)
	Compare(ctx context.Context, secret, digest string) (bool, error)
}

// UserDirectory resolves account identities. FindByID returns (nil, nil)
// when the account does not exist.
type UserDirectory interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

type AccessIssuer interface {
	Issue(userID int64, email string, roles []string) (string, error)
}

// Metadata describes the client a token was issued to.
type Metadata struct {
	UserAgent string
	IP        string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
}

type Config struct {
	DefaultTTLDays int
	Publisher      events.Publisher
	Logger         logging.Logger
	Now            func() time.Time
}

type Manager struct {
	store     Store
	hasher    Hasher
	users     UserDirectory
	access    AccessIssuer
	publisher events.Publisher
	log       logging.Logger
	now       func() time.Time
	ttlDays   int
}

func NewManager(store Store, hasher Hasher, users UserDirectory, access AccessIssuer, cfg Config) *Manager {
	m := &Manager{
		store:     store,
		hasher:    hasher,
		users:     users,
		access:    access,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
		now:       cfg.Now,
		ttlDays:   cfg.DefaultTTLDays,
	}
	if m.publisher == nil {
		m.publisher = events.NopPublisher{}
	}
	if m.log == nil {
		m.log = logging.Discard()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.ttlDays <= 0 {
		m.ttlDays = DefaultTTLDays
	}
	return m
}

// Issue creates a new refresh token for userID and returns the raw token.
// The record is persisted with its final hash in one create. ttlDays <= 0
// uses the configured default.
func (m *Manager) Issue(ctx context.Context, userID int64, meta Metadata, ttlDays int) (string, error) {
	if ttlDays <= 0 {
		ttlDays = m.ttlDays
	}

	id := uuid.NewString()
	secret, err := randomSecret()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	raw := id + "." + secret

	digest, err := m.hasher.Hash(ctx, raw)
	if err != nil {
		return "", hashingErr(err)
	}

	now := m.now().UTC()
	rec := &domain.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: digest,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
		Revoked:   false,
		ExpiresAt: now.Add(time.Duration(ttlDays) * 24 * time.Hour),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return "", storeErr("create refresh token", err)
	}

	return raw, nil
}

// Validate resolves a raw token to its record. Presenting a revoked token
// revokes every session of its owner before failing with ErrTokenRevoked.
func (m *Manager) Validate(ctx context.Context, raw string) (*domain.RefreshToken, error) {
	id, ok := parseID(raw)
	if !ok {
		return nil, ErrMalformedToken
	}

	rec, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("find refresh token", err)
	}
	if rec == nil {
		return nil, ErrTokenNotFound
	}

	if !rec.IsValid(m.now()) {
		// revoked wins over expired: an expired stolen token still trips reuse detection
		if rec.Revoked {
			if err := m.handleReuse(ctx, rec); err != nil {
				return nil, err
			}
			return nil, ErrTokenRevoked
		}
		return nil, ErrTokenExpired
	}

	match, err := m.hasher.Compare(ctx, raw, rec.TokenHash)
	if err != nil {
		return nil, hashingErr(err)
	}
	if !match {
		return nil, ErrInvalidToken
	}

	return rec, nil
}

// Rotate exchanges a valid raw token for a new refresh token and a fresh
// access token built from the account's current roles. The old token is
// revoked before the new one is issued; if issuance fails the caller is
// left logged out.
func (m *Manager) Rotate(ctx context.Context, raw string, meta Metadata) (*TokenPair, error) {
	rec, err := m.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}

	user, err := m.users.FindByID(ctx, rec.UserID)
	if err != nil {
		return nil, storeErr("find user", err)
	}
	if user == nil {
		m.log.Error(ctx, "refresh token references missing user", "user_id", rec.UserID, "token_id", rec.ID)
		return nil, ErrUserNotFound
	}

	flipped, err := m.store.RevokeIfActive(ctx, rec.ID)
	if err != nil {
		return nil, storeErr("revoke refresh token", err)
	}
	if !flipped {
		// another rotation of the same token won the race
		if err := m.handleReuse(ctx, rec); err != nil {
			return nil, err
		}
		return nil, ErrTokenRevoked
	}

	newRaw, err := m.Issue(ctx, user.ID, meta, 0)
	if err != nil {
		return nil, err
	}

	access, err := m.access.Issue(user.ID, user.Email, user.Roles.Strings())
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: newRaw, User: user}, nil
}

// RevokeByID revokes a single session. Unknown and already revoked ids
// succeed with the same message.
func (m *Manager) RevokeByID(ctx context.Context, id string) (string, error) {
	rec, err := m.store.RevokeByID(ctx, id)
	if err != nil {
		return "", storeErr("revoke refresh token", err)
	}
	if rec == nil {
		m.log.Debug(ctx, "revoke of unknown refresh token", "token_id", id)
	}
	return RevokedMessage, nil
}

func (m *Manager) RevokeAllForUser(ctx context.Context, userID int64) error {
	if err := m.store.RevokeAllForUser(ctx, userID); err != nil {
		return storeErr("revoke user refresh tokens", err)
	}
	return nil
}

// ListActiveSessions returns the user's unrevoked sessions, including ones
// that have expired but were never revoked.
func (m *Manager) ListActiveSessions(ctx context.Context, userID int64) ([]domain.RefreshToken, error) {
	list, err := m.store.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list refresh tokens", err)
	}
	return list, nil
}

func (m *Manager) handleReuse(ctx context.Context, rec *domain.RefreshToken) error {
	m.log.Warn(ctx, "refresh token reuse detected, revoking all sessions",
		"user_id", rec.UserID, "token_id", rec.ID)

	if err := m.store.RevokeAllForUser(ctx, rec.UserID); err != nil {
		return storeErr("revoke user refresh tokens", err)
	}

	ev := events.New(events.TypeRefreshTokenReuse, events.RefreshTokenReuse{UserID: rec.UserID, TokenID: rec.ID})
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.log.Warn(ctx, "publish reuse event failed", "user_id", rec.UserID, "error", err)
	}
	return nil
}

// parseID returns the record id, the text before the first '.'. Only a
// missing separator is malformed; empty parts fall through to the lookup.
func parseID(raw string) (string, bool) {
	idx := strings.IndexByte(raw, '.')
	if idx < 0 {
		return "", false
	}
	return raw[:idx], true
}

func randomSecret() (string, error) {
	buf := make([]byte, 2*secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:secretBytes]) + hex.EncodeToString(buf[secretBytes:]), nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func hashingErr(err error) error {
	if errors.Is(err, ErrHashingFailure) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrHashingFailure, err)
}
