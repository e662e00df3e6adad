package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// RevocationRegistry is the token blacklist. A token id stays revoked until
// the expiry it was revoked with.
type RevocationRegistry struct {
	runner      dbx.Runner
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	clock       func() time.Time
}

func NewRevocationRegistry(runner dbx.Runner, m repomanager.RepositoryManager, logger logging.Logger) *RevocationRegistry {
	return &RevocationRegistry{
		runner:      runner,
		repomanager: m,
		logger:      logger.With("module", "revocation"),
		clock:       time.Now,
	}
}

// Revoke blacklists tokenID until expiresAt. Revoking twice is a no-op.
// A failed write returns ErrRevocationFailed: callers must not report
// success when the token is still usable.
func (r *RevocationRegistry) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	entry := &models.BlacklistEntry{TokenID: tokenID, ExpiresAt: expiresAt, AddedAt: r.clock()}
	if err := r.repomanager.Blacklist(r.runner.Conn()).Add(ctx, entry); err != nil {
		r.logger.Error(ctx, "blacklist write failed", "token_id", tokenID, "error", err)
		return fmt.Errorf("%w: %w", common.ErrRevocationFailed, err)
	}
	return nil
}

// IsRevoked reports whether tokenID is blacklisted at now.
func (r *RevocationRegistry) IsRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	ok, err := r.repomanager.Blacklist(r.runner.Conn()).Exists(ctx, tokenID, now)
	if err != nil {
		return false, storeErr("blacklist lookup", err)
	}
	return ok, nil
}

// Prune drops entries whose expiry has passed.
func (r *RevocationRegistry) Prune(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.repomanager.Blacklist(r.runner.Conn()).DeleteExpired(ctx, now)
	if err != nil {
		return 0, storeErr("blacklist prune", err)
	}
	return n, nil
}
