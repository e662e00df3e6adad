package models

import "time"

// RefreshToken is the server-side record backing an issued refresh token.
// A refresh token whose record is gone is treated as revoked.
type RefreshToken struct {
	TokenID   string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
