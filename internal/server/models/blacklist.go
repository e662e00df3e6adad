package models

import "time"

// BlacklistEntry marks a token id as revoked until ExpiresAt.
type BlacklistEntry struct {
	TokenID   string
	ExpiresAt time.Time
	AddedAt   time.Time
}
