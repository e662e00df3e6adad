// Package refreshtokens declares the server-side repository contract for
// refresh token records, keyed by the token id (jti) of the issued JWT.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines operations for registering, looking up and revoking
// refresh token records.
type Repository interface {
	// Create registers a record. Registering an id that already exists is a no-op.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find returns the record for tokenID, or common.ErrorNotFound.
	Find(ctx context.Context, tokenID string) (*models.RefreshToken, error)

	// Take atomically deletes the record and returns it. Of several concurrent
	// callers at most one gets the record; the rest get common.ErrorNotFound.
	Take(ctx context.Context, tokenID string) (*models.RefreshToken, error)

	// Delete removes a record. Deleting a non-existent record is not an error.
	Delete(ctx context.Context, tokenID string) error

	ListByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error)
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired removes records with expires_at <= now and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
