// Package users declares the account repository and its implementations.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores user accounts.
//
// Lookups return common.ErrorNotFound when no row matches; writes that would
// duplicate a username or email return common.ErrConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByLogin matches login against username first, then email.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// Update overwrites every mutable column, including PasswordHash.
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id string, hash string, now time.Time) error
	Delete(ctx context.Context, id string) error
}
