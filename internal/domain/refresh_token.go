package domain

import "time"

// RefreshToken is a persisted refresh-token session.
//
// Security notes:
// - The raw token is never stored, only a one-way hash of it (TokenHash).
// - On refresh the token is revoked and replaced by a new one.
// - Revoked is monotonic: once true it never goes back.
type RefreshToken struct {
	ID string `json:"id" gorm:"primaryKey;size:36"`

	UserID int64 `json:"user_id" gorm:"index:idx_refresh_tokens_user_revoked,priority:1;not null"`

	TokenHash string `json:"-" gorm:"not null"`
	UserAgent string `json:"user_agent"`
	IP        string `json:"ip"`

	Revoked   bool      `json:"revoked" gorm:"not null;default:false;index:idx_refresh_tokens_user_revoked,priority:2"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// IsExpired reports whether the token is past its expiry. A token expiring
// exactly at now is expired.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsValid reports whether the token is neither revoked nor expired.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
