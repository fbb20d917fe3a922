package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnhub/internal/domain"
	"learnhub/internal/events"
	"learnhub/internal/modules/refreshtoken"
	"learnhub/internal/pkg/logging"
)

// Service is the session orchestrator: it combines credential checks,
// access token minting and the refresh-token lifecycle.
type Service struct {
	users     UserRepository
	hasher    refreshtoken.Hasher
	access    refreshtoken.AccessIssuer
	sessions  SessionManager
	publisher events.Publisher
	log       logging.Logger
	now       func() time.Time
}

type Config struct {
	Publisher events.Publisher
	Logger    logging.Logger
	Now       func() time.Time
}

// Result is returned by every operation that starts a session.
type Result struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// GoogleProfile is the identity returned by Google's userinfo endpoint.
type GoogleProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Session is one device or browser holding a refresh token.
type Session struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
}

func NewService(users UserRepository, hasher refreshtoken.Hasher, access refreshtoken.AccessIssuer, sessions SessionManager, cfg Config) *Service {
	s := &Service{
		users:     users,
		hasher:    hasher,
		access:    access,
		sessions:  sessions,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
		now:       cfg.Now,
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Register creates a local account and starts its first session.
func (s *Service) Register(ctx context.Context, in RegisterInput, meta refreshtoken.Metadata) (*Result, error) {
	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	user, err := domain.NewUser(domain.NewUserParams{
		Email:        email,
		Name:         in.Name,
		PasswordHash: digest,
		Provider:     domain.ProviderLocal,
	})
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return s.startSession(ctx, user, meta)
}

// Login checks local credentials. Every failure wraps ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in LoginInput, meta refreshtoken.Metadata) (*Result, error) {
	user, err := s.checkCredentials(ctx, in)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.log.Info(ctx, "login rejected", "reason", err.Error(), "ip", meta.IP)
		}
		return nil, err
	}
	return s.startSession(ctx, user, meta)
}

func (s *Service) checkCredentials(ctx context.Context, in LoginInput) (*domain.User, error) {
	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return nil, ErrEmailNotFound
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrEmailNotFound
	}
	if user.Provider != domain.ProviderLocal || !user.HasPassword() {
		return nil, ErrOAuthOnlyAccount
	}

	ok, err := s.hasher.Compare(ctx, in.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrIncorrectPassword
	}
	return user, nil
}

// LoginWithGoogle signs in the account owning the Google email, creating
// it on first use.
func (s *Service) LoginWithGoogle(ctx context.Context, p GoogleProfile, meta refreshtoken.Metadata) (*Result, error) {
	if !p.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	email, err := domain.NormalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if user == nil {
		name := p.Name
		if name == "" {
			name = email
		}
		user, err = domain.NewUser(domain.NewUserParams{
			Email:      email,
			Name:       name,
			Provider:   domain.ProviderGoogle,
			ProviderID: p.Subject,
			AvatarURL:  p.Picture,
		})
		if err != nil {
			return nil, err
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, domain.ErrDuplicateEmail) {
				return nil, ErrEmailAlreadyExists
			}
			return nil, fmt.Errorf("create user: %w", err)
		}
		s.log.Info(ctx, "user registered via google", "user_id", user.ID)
	}

	return s.startSession(ctx, user, meta)
}

// Refresh rotates the refresh token and mints an access token with the
// account's current roles.
func (s *Service) Refresh(ctx context.Context, raw string, meta refreshtoken.Metadata) (*Result, error) {
	pair, err := s.sessions.Rotate(ctx, raw, meta)
	if err != nil {
		return nil, err
	}
	return &Result{User: pair.User, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout revokes the session the raw token belongs to.
func (s *Service) Logout(ctx context.Context, raw string) (string, error) {
	rec, err := s.sessions.Validate(ctx, raw)
	if err != nil {
		return "", err
	}
	return s.sessions.RevokeByID(ctx, rec.ID)
}

// LogoutAll revokes every session of userID.
func (s *Service) LogoutAll(ctx context.Context, userID int64) error {
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	ev := events.New(events.TypeAllSessionsRevoked, events.AllSessionsRevoked{UserID: userID})
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn(ctx, "publish sessions revoked event failed", "user_id", userID, "error", err)
	}
	return nil
}

// ListSessions returns every unrevoked session of userID, flagging the
// ones past their expiry.
func (s *Service) ListSessions(ctx context.Context, userID int64) ([]Session, error) {
	records, err := s.sessions.ListActiveSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]Session, 0, len(records))
	for _, r := range records {
		out = append(out, Session{
			ID:        r.ID,
			UserAgent: r.UserAgent,
			IP:        r.IP,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
			Expired:   r.IsExpired(now),
		})
	}
	return out, nil
}

// RevokeSession revokes sessionID if it belongs to userID. Foreign or
// unknown ids succeed with the same message and change nothing.
func (s *Service) RevokeSession(ctx context.Context, userID int64, sessionID string) (string, error) {
	records, err := s.sessions.ListActiveSessions(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if r.ID == sessionID {
			return s.sessions.RevokeByID(ctx, sessionID)
		}
	}
	return refreshtoken.RevokedMessage, nil
}

func (s *Service) startSession(ctx context.Context, user *domain.User, meta refreshtoken.Metadata) (*Result, error) {
	access, err := s.access.Issue(user.ID, user.Email, user.Roles.Strings())
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	raw, err := s.sessions.Issue(ctx, user.ID, meta, 0)
	if err != nil {
		return nil, err
	}
	return &Result{User: user, AccessToken: access, RefreshToken: raw}, nil
}
