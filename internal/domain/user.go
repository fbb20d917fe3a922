package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"learnhub/internal/pkg/validator"
)

const (
	maxEmailLength = 255
	minNameLength  = 2
	maxNameLength  = 100
)

// User is an account identity. PasswordHash is empty for OAuth-only accounts.
type User struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	PasswordHash string       `json:"-"`
	Provider     AuthProvider `json:"provider"`
	ProviderID   string       `json:"-"`
	AvatarURL    string       `json:"avatar_url,omitempty"`
	Roles        Roles        `json:"roles"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type NewUserParams struct {
	Email        string
	Name         string
	PasswordHash string
	Provider     AuthProvider
	ProviderID   string
	AvatarURL    string
	Roles        Roles
}

// NewUser validates params and builds an account with normalized email and name.
func NewUser(p NewUserParams) (*User, error) {
	email, err := NormalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(p.Name)
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return nil, ErrInvalidName
	}

	provider := p.Provider
	if provider == "" {
		provider = ProviderLocal
	}
	if provider == ProviderLocal && p.PasswordHash == "" {
		return nil, ErrPasswordRequired
	}

	roles := p.Roles
	if len(roles) == 0 {
		roles = Roles{DefaultRole}
	}
	for _, r := range roles {
		if !r.Valid() {
			return nil, ErrInvalidRole
		}
	}

	return &User{
		Email:        email,
		Name:         name,
		PasswordHash: p.PasswordHash,
		Provider:     provider,
		ProviderID:   p.ProviderID,
		AvatarURL:    p.AvatarURL,
		Roles:        roles,
	}, nil
}

// NormalizeEmail trims and lower-cases the address and checks its format.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailLength {
		return "", ErrInvalidEmail
	}
	if err := validator.Var(email, "email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u *User) IsAdmin() bool {
	return u.Roles.HasAny(RoleAdmin, RoleSuperAdmin)
}

// UpdateRoles replaces the role set. At least one valid role is required.
func (u *User) UpdateRoles(roles Roles) error {
	if len(roles) == 0 {
		return ErrNoRoles
	}
	out := make(Roles, 0, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			return ErrInvalidRole
		}
		if !out.Has(r) {
			out = append(out, r)
		}
	}
	u.Roles = out
	return nil
}

// PublicUser is the response-safe projection of User.
type PublicUser struct {
	ID        int64        `json:"id"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	Provider  AuthProvider `json:"provider"`
	AvatarURL string       `json:"avatar_url,omitempty"`
	Roles     []string     `json:"roles"`
	CreatedAt time.Time    `json:"created_at"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Provider:  u.Provider,
		AvatarURL: u.AvatarURL,
		Roles:     u.Roles.Strings(),
		CreatedAt: u.CreatedAt,
	}
}
