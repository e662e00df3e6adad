package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// Credentials are whatever the caller presented. Either field may be empty.
type Credentials struct {
	BearerToken  string
	SessionToken string
}

// IdentityResolver turns request credentials into the current caller.
//
// The bearer token is tried first. Any token failure, or a valid token whose
// user no longer exists, falls through to the session cookie. Only store
// outages abort resolution.
type IdentityResolver struct {
	verifier    *auth.Verifier
	sessions    *SessionStore
	runner      dbx.Runner
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	clock       func() time.Time
}

func NewIdentityResolver(v *auth.Verifier, sessions *SessionStore, runner dbx.Runner, m repomanager.RepositoryManager, logger logging.Logger) *IdentityResolver {
	return &IdentityResolver{
		verifier:    v,
		sessions:    sessions,
		runner:      runner,
		repomanager: m,
		logger:      logger.With("module", "identity"),
		clock:       time.Now,
	}
}

// Resolve returns the caller identity, or nil when the caller is
// unauthenticated. The error is non-nil only for store failures.
func (r *IdentityResolver) Resolve(ctx context.Context, c Credentials) (*models.Identity, error) {
	now := r.clock()

	if c.BearerToken != "" {
		id, err := r.fromBearer(ctx, c.BearerToken, now)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}

	if c.SessionToken != "" {
		return r.fromSession(ctx, c.SessionToken, now)
	}

	return nil, nil
}

func (r *IdentityResolver) fromBearer(ctx context.Context, token string, now time.Time) (*models.Identity, error) {
	claims, err := r.verifier.Verify(ctx, token, auth.TokenTypeAccess, now)
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return nil, err
		}
		r.logger.Debug(ctx, "bearer rejected, trying session", "reason", err)
		return nil, nil
	}

	u, err := r.repomanager.Users(r.runner.Conn()).GetByID(ctx, claims.Subject)
	if errors.Is(err, common.ErrorNotFound) {
		r.logger.Debug(ctx, "bearer subject not found, trying session", "user_id", claims.Subject)
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("load user", err)
	}

	id := models.NewIdentity(u, models.SourceBearer)
	id.TokenID = claims.ID
	id.TokenExpiresAt = claims.ExpiresAt.Time
	id.RefreshTokenID = claims.RefreshID()
	return id, nil
}

func (r *IdentityResolver) fromSession(ctx context.Context, token string, now time.Time) (*models.Identity, error) {
	sess, err := r.sessions.Resolve(ctx, token, now)
	if err != nil || sess == nil {
		return nil, err
	}

	u, err := r.repomanager.Users(r.runner.Conn()).GetByID(ctx, sess.UserID)
	if errors.Is(err, common.ErrorNotFound) {
		// orphaned session; drop it
		if err := r.sessions.Destroy(ctx, token); err != nil {
			r.logger.Warn(ctx, "failed to drop orphaned session", "error", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("load user", err)
	}

	id := models.NewIdentity(u, models.SourceSession)
	id.SessionToken = sess.Token
	return id, nil
}

// Require fails with ErrUnauthorized when there is no identity.
func Require(id *models.Identity) error {
	if id == nil {
		return common.ErrUnauthorized
	}
	return nil
}

// RequireRole additionally fails with ErrForbidden when the identity's user
// type differs from role.
func RequireRole(id *models.Identity, role string) error {
	if err := Require(id); err != nil {
		return err
	}
	if id.UserType != role {
		return common.ErrForbidden
	}
	return nil
}
