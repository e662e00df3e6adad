// Package blacklist stores revoked token ids until the tokens would have
// expired anyway.
package blacklist

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// Add records entry unless its token id is already present.
	Add(ctx context.Context, entry *models.BlacklistEntry) error
	// Exists reports whether tokenID is blacklisted with an expiry after now.
	Exists(ctx context.Context, tokenID string, now time.Time) (bool, error)
	// DeleteExpired drops entries whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
