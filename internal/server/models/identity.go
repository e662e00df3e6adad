package models

import "time"

// IdentitySource tells which credential produced an Identity.
type IdentitySource string

const (
	SourceBearer  IdentitySource = "bearer"
	SourceSession IdentitySource = "session"
)

// Identity is the resolved caller.
type Identity struct {
	UserID   string         `json:"user_id"`
	UserName string         `json:"username"`
	Email    string         `json:"email"`
	UserType string         `json:"user_type"`
	Source   IdentitySource `json:"source"`

	// Set only for bearer identities. RefreshTokenID is the refresh token
	// issued together with the access token, when the token names one.
	TokenID        string    `json:"-"`
	TokenExpiresAt time.Time `json:"-"`
	RefreshTokenID string    `json:"-"`

	// Set only for session identities.
	SessionToken string `json:"-"`
}

// NewIdentity copies the public user attributes into an Identity.
func NewIdentity(u *User, src IdentitySource) *Identity {
	return &Identity{
		UserID:   u.ID,
		UserName: u.UserName,
		Email:    u.Email,
		UserType: u.UserType,
		Source:   src,
	}
}
