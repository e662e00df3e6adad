// Package services contains server-side business logic. This file implements
// UserService: registration, login, token refresh, logout, profile changes
// and account deletion.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// dummyHash is verified against when a login names an unknown user, so
// both paths cost one argon2 evaluation.
var dummyHash = sync.OnceValue(func() string {
	h, _ := cryptox.HashPassword("timing-equaliser")
	return h
})

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
}

// AuthResult is returned by login, refresh and current-user.
type AuthResult struct {
	Tokens  *TokenPair
	User    *models.User
	Session *models.Session // login only
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Gender    string
}

// UpdateInput carries a partial profile update; nil fields are unchanged.
type UpdateInput struct {
	Username  *string
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Gender    *string
}

func (in UpdateInput) empty() bool {
	return in.Username == nil && in.Email == nil && in.Password == nil &&
		in.FirstName == nil && in.LastName == nil && in.Gender == nil
}

// VerifyResult is the outcome of VerifyToken.
type VerifyResult struct {
	Valid    bool
	UserID   string
	Username string
	Email    string
	UserType string
	Error    string
}

// TokenSettings derives the signing tuple from server config.
func TokenSettings(cfg *config.Config) auth.Settings {
	return auth.Settings{
		Secret:     []byte(cfg.SecretKey),
		Issuer:     cfg.Issuer,
		Audience:   cfg.Audience,
		AccessTTL:  cfg.AccessTokenValidityDuration,
		RefreshTTL: cfg.RefreshTokenValidityDuration,
	}
}

type UserService struct {
	runner      dbx.Runner
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	verifier    *auth.Verifier
	registry    *RevocationRegistry
	sessions    *SessionStore
	policy      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	logger      logging.Logger
	clock       func() time.Time
}

// NewUserService wires a UserService. The verifier it builds consults the
// given registry and the refresh token records of m.
func NewUserService(runner dbx.Runner, m repomanager.RepositoryManager, cfg *config.Config,
	registry *RevocationRegistry, sessions *SessionStore, logger logging.Logger) *UserService {

	settings := TokenSettings(cfg)
	return &UserService{
		runner:      runner,
		repomanager: m,
		issuer:      auth.NewIssuer(settings),
		verifier:    auth.NewVerifier(settings, registry, m.RefreshTokens(runner.Conn())),
		registry:    registry,
		sessions:    sessions,
		policy:      cfg.RefreshPolicy,
		accessTTL:   cfg.AccessTokenValidityDuration,
		refreshTTL:  cfg.RefreshTokenValidityDuration,
		logger:      logger.With("module", "users"),
		clock:       time.Now,
	}
}

// Verifier exposes the token verifier for the identity resolver and transports.
func (s *UserService) Verifier() *auth.Verifier { return s.verifier }

func (s *UserService) users() users.Repository {
	return s.repomanager.Users(s.runner.Conn())
}

// Register creates a normal user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, common.UserTypeNormal)
}

func (s *UserService) create(ctx context.Context, in RegisterInput, userType string) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrValidation)
	}
	if !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", common.ErrValidation)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	repo := s.users()
	if err := s.checkUnique(ctx, "", in.Username, in.Email); err != nil {
		return nil, err
	}

	now := s.clock()
	u, err := repo.Create(ctx, &models.User{
		UserName:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Gender:       in.Gender,
		UserType:     userType,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, storeErr("create user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID, "user_type", userType)
	return u, nil
}

// checkUnique reports ErrConflict when username or email belongs to a user
// other than selfID.
func (s *UserService) checkUnique(ctx context.Context, selfID, username, email string) error {
	repo := s.users()

	if username != "" {
		u, err := repo.GetByUsername(ctx, username)
		if err == nil && u.ID != selfID {
			return fmt.Errorf("%w: username already taken", common.ErrConflict)
		}
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return storeErr("check username", err)
		}
	}
	if email != "" {
		u, err := repo.GetByEmail(ctx, email)
		if err == nil && u.ID != selfID {
			return fmt.Errorf("%w: email already registered", common.ErrConflict)
		}
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return storeErr("check email", err)
		}
	}
	return nil
}

// EnsureAdmin creates an admin account unless the username is taken.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	_, err := s.users().GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return storeErr("lookup admin", err)
	}
	_, err = s.create(ctx, RegisterInput{Username: username, Email: email, Password: password}, common.UserTypeAdmin)
	return err
}

// Login checks the password of the user named by login (username or email),
// issues a token pair and opens a session.
func (s *UserService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	repo := s.users()

	user, err := repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.VerifyPassword(password, dummyHash())
			return nil, common.ErrInvalidCredentials
		}
		return nil, storeErr("load user", err)
	}

	if !cryptox.VerifyPassword(password, user.PasswordHash) {
		s.logger.Info(ctx, "login failed", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	now := s.clock()

	if cryptox.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password, now)
	}

	var pair *TokenPair
	if err := s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		pair, err = s.issuePair(ctx, tx, user, now)
		return err
	}); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, user.ID, user.UserName, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "login succeeded", "user_id", user.ID)
	return &AuthResult{Tokens: pair, User: user, Session: sess}, nil
}

// rehash upgrades a legacy or outdated hash. Failure is logged only: the
// user is already authenticated.
func (s *UserService) rehash(ctx context.Context, user *models.User, password string, now time.Time) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		s.logger.Warn(ctx, "rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users().UpdatePassword(ctx, user.ID, hash, now); err != nil {
		s.logger.Warn(ctx, "rehash store failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = now
	s.logger.Info(ctx, "password hash upgraded", "user_id", user.ID)
}

// issuePair mints both tokens and registers the refresh record through tx.
func (s *UserService) issuePair(ctx context.Context, tx dbx.DBTX, user *models.User, now time.Time) (*TokenPair, error) {
	refresh, err := s.issuer.IssueRefresh(user.ID, now)
	if err != nil {
		return nil, err
	}
	access, err := s.issuer.IssueAccess(user, now, auth.WithRefreshID(refresh.Claims.ID))
	if err != nil {
		return nil, err
	}

	rec := &models.RefreshToken{
		TokenID:   refresh.Claims.ID,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: refresh.ExpiresAt(),
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, rec); err != nil {
		return nil, storeErr("store refresh token", err)
	}

	return s.pair(access, refresh.Token), nil
}

func (s *UserService) pair(access *auth.IssuedToken, refresh string) *TokenPair {
	return &TokenPair{
		AccessToken:     access.Token,
		RefreshToken:    refresh,
		AccessExpiresAt: access.ExpiresAt(),
		ExpiresIn:       int64(s.accessTTL / time.Second),
	}
}

// Refresh exchanges a refresh token for new tokens according to the
// configured policy.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if s.policy == config.RefreshPolicyLenient {
		return s.refreshLenient(ctx, refreshToken)
	}
	return s.refreshRotate(ctx, refreshToken)
}

func (s *UserService) subject(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	u, err := s.users().GetByID(ctx, claims.Subject)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrTokenRevoked
	}
	if err != nil {
		return nil, storeErr("load user", err)
	}
	return u, nil
}

// refreshRotate consumes the presented record and issues a new pair. Of two
// concurrent uses of one token only one wins; the other gets ErrTokenRevoked.
func (s *UserService) refreshRotate(ctx context.Context, refreshToken string) (*AuthResult, error) {
	now := s.clock()

	claims, err := s.verifier.Verify(ctx, refreshToken, auth.TokenTypeRefresh, now)
	if err != nil {
		return nil, err
	}
	user, err := s.subject(ctx, claims)
	if err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.RefreshTokens(tx).Take(ctx, claims.ID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenRevoked
			}
			return storeErr("consume refresh token", err)
		}
		var err error
		pair, err = s.issuePair(ctx, tx, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The record is gone, so the old token is already unusable; the
	// blacklist entry is a second line.
	if err := s.registry.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Warn(ctx, "rotated refresh token not blacklisted", "token_id", claims.ID, "error", err)
	}

	return &AuthResult{Tokens: pair, User: user}, nil
}

// refreshLenient hands back the same refresh token with a new access token
// and re-registers the record if it went missing. Blacklisted tokens are
// still rejected.
func (s *UserService) refreshLenient(ctx context.Context, refreshToken string) (*AuthResult, error) {
	now := s.clock()

	claims, err := s.verifier.Verify(ctx, refreshToken, auth.TokenTypeRefresh, now, auth.SkipRecordCheck())
	if err != nil {
		return nil, err
	}
	user, err := s.subject(ctx, claims)
	if err != nil {
		return nil, err
	}

	rec := &models.RefreshToken{
		TokenID:   claims.ID,
		UserID:    user.ID,
		CreatedAt: claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.repomanager.RefreshTokens(s.runner.Conn()).Create(ctx, rec); err != nil {
		return nil, storeErr("register refresh token", err)
	}

	access, err := s.issuer.IssueAccess(user, now, auth.WithRefreshID(claims.ID))
	if err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: s.pair(access, refreshToken), User: user}, nil
}

// Logout blacklists the presented access token together with the refresh
// token it was issued with, and destroys the session named by sessionToken
// and the one the identity was resolved from.
func (s *UserService) Logout(ctx context.Context, id *models.Identity, sessionToken string) error {
	if err := Require(id); err != nil {
		return err
	}

	if id.Source == models.SourceBearer && id.TokenID != "" {
		if err := s.registry.Revoke(ctx, id.TokenID, id.TokenExpiresAt); err != nil {
			return err
		}
		if err := s.revokeRefresh(ctx, id.RefreshTokenID); err != nil {
			return err
		}
	}

	for _, tok := range []string{sessionToken, id.SessionToken} {
		if err := s.sessions.Destroy(ctx, tok); err != nil {
			return err
		}
	}

	s.logger.Info(ctx, "logout", "user_id", id.UserID, "source", string(id.Source))
	return nil
}

// revokeRefresh blacklists a refresh token id and drops its record. The
// blacklist entry outlives any refresh token issued now; lenient refresh
// would otherwise re-register the deleted record.
func (s *UserService) revokeRefresh(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	if err := s.registry.Revoke(ctx, tokenID, s.clock().Add(s.refreshTTL)); err != nil {
		return err
	}
	if err := s.repomanager.RefreshTokens(s.runner.Conn()).Delete(ctx, tokenID); err != nil {
		return storeErr("delete refresh token", err)
	}
	return nil
}

// CurrentUser returns the caller's user record and a fresh token pair.
func (s *UserService) CurrentUser(ctx context.Context, id *models.Identity) (*AuthResult, error) {
	if err := Require(id); err != nil {
		return nil, err
	}
	user, err := s.users().GetByID(ctx, id.UserID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUnauthorized
	}
	if err != nil {
		return nil, storeErr("load user", err)
	}

	now := s.clock()
	var pair *TokenPair
	if err := s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		pair, err = s.issuePair(ctx, tx, user, now)
		return err
	}); err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: pair, User: user}, nil
}

// VerifyToken checks an access token for collaborating services. Token
// failures and deleted subjects come back as an invalid result; only store
// outages are errors.
func (s *UserService) VerifyToken(ctx context.Context, token string) (*VerifyResult, error) {
	claims, err := s.verifier.Verify(ctx, token, auth.TokenTypeAccess, s.clock())
	if err != nil {
		if errors.Is(err, common.ErrStoreUnavailable) {
			return nil, err
		}
		return &VerifyResult{Valid: false, Error: tokenErrorText(err)}, nil
	}

	// tokens of deleted accounts are revoked; profile fields come from the
	// current record so a demoted admin is not reported as admin
	u, err := s.subject(ctx, claims)
	if err != nil {
		if common.IsAuthError(err) {
			return &VerifyResult{Valid: false, Error: tokenErrorText(err)}, nil
		}
		return nil, err
	}
	return &VerifyResult{
		Valid:    true,
		UserID:   u.ID,
		Username: u.UserName,
		Email:    u.Email,
		UserType: u.UserType,
	}, nil
}

func tokenErrorText(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return common.ErrTokenExpired.Error()
	case errors.Is(err, common.ErrTokenRevoked):
		return common.ErrTokenRevoked.Error()
	default:
		return common.ErrInvalidToken.Error()
	}
}

// ListUsers returns every user. Requires an identity.
func (s *UserService) ListUsers(ctx context.Context, id *models.Identity) ([]*models.User, error) {
	if err := Require(id); err != nil {
		return nil, err
	}
	list, err := s.users().List(ctx)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return list, nil
}

// UpdateProfile applies a partial update to the caller's account.
func (s *UserService) UpdateProfile(ctx context.Context, id *models.Identity, in UpdateInput) (*models.User, error) {
	if err := Require(id); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrValidation)
	}

	repo := s.users()
	user, err := repo.GetByID(ctx, id.UserID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUnauthorized
	}
	if err != nil {
		return nil, storeErr("load user", err)
	}

	var newName, newEmail string
	if in.Username != nil {
		newName = strings.TrimSpace(*in.Username)
		if newName == "" {
			return nil, fmt.Errorf("%w: username must not be empty", common.ErrValidation)
		}
		user.UserName = newName
	}
	if in.Email != nil {
		newEmail = strings.TrimSpace(*in.Email)
		if !strings.Contains(newEmail, "@") {
			return nil, fmt.Errorf("%w: a valid email is required", common.ErrValidation)
		}
		user.Email = newEmail
	}
	if err := s.checkUnique(ctx, user.ID, newName, newEmail); err != nil {
		return nil, err
	}

	if in.Password != nil {
		hash, err := cryptox.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Gender != nil {
		user.Gender = *in.Gender
	}
	user.UpdatedAt = s.clock()

	if err := repo.Update(ctx, user); err != nil {
		return nil, storeErr("update user", err)
	}
	return user, nil
}

// ChangePassword sets a new password for the caller.
func (s *UserService) ChangePassword(ctx context.Context, id *models.Identity, password, confirmation string) error {
	if err := Require(id); err != nil {
		return err
	}
	if password != confirmation {
		return fmt.Errorf("%w: passwords do not match", common.ErrValidation)
	}
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}
	err = s.users().UpdatePassword(ctx, id.UserID, hash, s.clock())
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrUnauthorized
	}
	return storeErr("update password", err)
}

// DeleteAccount deletes the caller's own account.
func (s *UserService) DeleteAccount(ctx context.Context, id *models.Identity) error {
	if err := Require(id); err != nil {
		return err
	}
	if err := s.deleteCascade(ctx, id.UserID); err != nil {
		return err
	}
	if id.Source == models.SourceBearer && id.TokenID != "" {
		if err := s.registry.Revoke(ctx, id.TokenID, id.TokenExpiresAt); err != nil {
			return err
		}
	}
	return nil
}

// DeleteUser deletes the account named username. Admins may delete anyone,
// other callers only themselves.
func (s *UserService) DeleteUser(ctx context.Context, id *models.Identity, username string) error {
	if err := Require(id); err != nil {
		return err
	}
	if id.UserType != common.UserTypeAdmin && id.UserName != username {
		return common.ErrForbidden
	}

	target, err := s.users().GetByUsername(ctx, username)
	if err != nil {
		return storeErr("load user", err)
	}
	if target.ID == id.UserID {
		return s.DeleteAccount(ctx, id)
	}
	return s.deleteCascade(ctx, target.ID)
}

// deleteCascade blacklists every refresh token of the user, then removes
// the records and the user in one unit of work, then destroys all sessions.
func (s *UserService) deleteCascade(ctx context.Context, userID string) error {
	records, err := s.repomanager.RefreshTokens(s.runner.Conn()).ListByUser(ctx, userID)
	if err != nil {
		return storeErr("list refresh tokens", err)
	}
	for _, r := range records {
		if err := s.registry.Revoke(ctx, r.TokenID, r.ExpiresAt); err != nil {
			return err
		}
	}

	err = s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, userID); err != nil {
			return storeErr("delete refresh tokens", err)
		}
		if err := s.repomanager.Users(tx).Delete(ctx, userID); err != nil {
			return storeErr("delete user", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.sessions.DestroyAllForSubject(ctx, userID); err != nil {
		return err
	}

	s.logger.Info(ctx, "account deleted", "user_id", userID, "revoked_refresh_tokens", len(records))
	return nil
}

// Health pings the primary store.
func (s *UserService) Health(ctx context.Context) error {
	if err := s.runner.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// PruneStats counts rows removed by one Prune pass.
type PruneStats struct {
	Blacklist     int64
	Sessions      int64
	RefreshTokens int64
}

// Prune removes expired blacklist entries, sessions and refresh records.
// It keeps going after a failure and returns the errors joined.
func (s *UserService) Prune(ctx context.Context) (PruneStats, error) {
	now := s.clock()
	var st PruneStats
	var errs []error

	var err error
	if st.Blacklist, err = s.registry.Prune(ctx, now); err != nil {
		errs = append(errs, err)
	}
	if st.Sessions, err = s.sessions.Prune(ctx, now); err != nil {
		errs = append(errs, err)
	}
	if st.RefreshTokens, err = s.repomanager.RefreshTokens(s.runner.Conn()).DeleteExpired(ctx, now); err != nil {
		errs = append(errs, storeErr("prune refresh tokens", err))
	}

	return st, errors.Join(errs...)
}
