package models

import "time"

type CredentialType string

const (
	CredentialTypeOAuth CredentialType = "oauth"
)

// Credential is one token set for an account. Token values are stored
// encrypted. At most one active credential of a given type exists per
// account; creating a new one deactivates prior ones in the same
// transaction. Credentials are deactivated, never deleted.
type Credential struct {
	ID               uint           `json:"id" gorm:"primarykey"`
	AccountID        uint           `json:"account_id" gorm:"not null;index"`
	Type             CredentialType `json:"type" gorm:"size:32;not null;default:oauth"`
	AccessToken      string         `json:"-" gorm:"type:text;not null"`
	RefreshToken     string         `json:"-" gorm:"type:text"`
	ExpiresAt        *time.Time     `json:"expires_at"`
	RefreshExpiresAt *time.Time     `json:"refresh_expires_at"`
	Scopes           string         `json:"scopes" gorm:"type:text"`
	IsActive         bool           `json:"is_active" gorm:"default:true;index"`
	AutoRefresh      bool           `json:"auto_refresh" gorm:"default:true"`
	RefreshCount     int            `json:"refresh_count" gorm:"default:0"`
	LastRefreshedAt  *time.Time     `json:"last_refreshed_at"`
	LastUsedAt       *time.Time     `json:"last_used_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Expired reports whether the access token expiry has passed at t.
func (c *Credential) Expired(t time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(t)
}

// ExpiresWithin reports whether the token expires before t+horizon.
// A credential without an expiry never reports true.
func (c *Credential) ExpiresWithin(t time.Time, horizon time.Duration) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(t.Add(horizon))
}
