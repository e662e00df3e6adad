package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// sessionTokenBytes is the entropy of a session token before encoding.
const sessionTokenBytes = 32

// SessionStore manages server-side sessions referenced by the session cookie.
type SessionStore struct {
	runner      dbx.Runner
	repomanager repomanager.RepositoryManager
	ttl         time.Duration
	logger      logging.Logger
}

func NewSessionStore(runner dbx.Runner, m repomanager.RepositoryManager, ttl time.Duration, logger logging.Logger) *SessionStore {
	return &SessionStore{
		runner:      runner,
		repomanager: m,
		ttl:         ttl,
		logger:      logger.With("module", "sessions"),
	}
}

// TTL is the lifetime given to new sessions.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Create stores a new session for the user and returns it.
func (s *SessionStore) Create(ctx context.Context, userID, username string, now time.Time) (*models.Session, error) {
	token, err := common.MakeRandURLString(sessionTokenBytes)
	if err != nil {
		return nil, err
	}
	sess := &models.Session{
		Token:     token,
		UserID:    userID,
		UserName:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repomanager.Sessions(s.runner.Conn()).Create(ctx, sess); err != nil {
		return nil, storeErr("create session", err)
	}
	return sess, nil
}

// Resolve returns the live session for token. Missing and expired sessions
// both yield nil with no error.
func (s *SessionStore) Resolve(ctx context.Context, token string, now time.Time) (*models.Session, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := s.repomanager.Sessions(s.runner.Conn()).Get(ctx, token)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get session", err)
	}
	if !sess.Valid(now) {
		return nil, nil
	}
	return sess, nil
}

// Destroy removes the session. Unknown tokens are ignored.
func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repomanager.Sessions(s.runner.Conn()).Delete(ctx, token); err != nil {
		return storeErr("delete session", err)
	}
	return nil
}

// DestroyAllForSubject removes every session of the user.
func (s *SessionStore) DestroyAllForSubject(ctx context.Context, userID string) error {
	if err := s.repomanager.Sessions(s.runner.Conn()).DeleteByUser(ctx, userID); err != nil {
		return storeErr("delete user sessions", err)
	}
	return nil
}

func (s *SessionStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repomanager.Sessions(s.runner.Conn()).DeleteExpired(ctx, now)
	if err != nil {
		return 0, storeErr("prune sessions", err)
	}
	return n, nil
}
