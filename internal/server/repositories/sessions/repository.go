// Package sessions persists server-side login sessions keyed by the opaque
// cookie token.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	// Get returns the stored session or common.ErrorNotFound. Expiry is not
	// checked here.
	Get(ctx context.Context, token string) (*models.Session, error)
	// Delete is idempotent.
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
