// Package auth issues and verifies HS256 JWT access and refresh tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// tokenIDBytes gives 128-bit token ids.
const tokenIDBytes = 16

// Claims carries the registered claims plus the caller attributes stamped
// into access tokens. Ext holds optional extension claims.
type Claims struct {
	jwt.RegisteredClaims
	Type     TokenType      `json:"type"`
	Username string         `json:"username,omitempty"`
	Email    string         `json:"email,omitempty"`
	UserType string         `json:"user_type,omitempty"`
	Name     string         `json:"name,omitempty"`
	Ext      map[string]any `json:"ext,omitempty"`
}

// Validate checks the fields every token must carry. It runs before signing
// and again during verification.
func (c *Claims) Validate() error {
	switch {
	case c.Subject == "":
		return errors.New("missing sub")
	case c.ID == "":
		return errors.New("missing jti")
	case c.ExpiresAt == nil:
		return errors.New("missing exp")
	case c.Type != TokenTypeAccess && c.Type != TokenTypeRefresh:
		return fmt.Errorf("unknown token type %q", c.Type)
	}
	return nil
}

// Settings is the signing tuple shared by Issuer and Verifier.
type Settings struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IssuedToken is a signed token together with the claims it carries.
type IssuedToken struct {
	Token  string
	Claims *Claims
}

// ExpiresAt is a shortcut for Claims.ExpiresAt.
func (t *IssuedToken) ExpiresAt() time.Time {
	return t.Claims.ExpiresAt.Time
}

type Issuer struct {
	s Settings
}

func NewIssuer(s Settings) *Issuer {
	return &Issuer{s: s}
}

// ExtRefreshID names the ext entry holding the id of the refresh token an
// access token was issued with.
const ExtRefreshID = "rid"

// ClaimOption adjusts access token claims before signing.
type ClaimOption func(*Claims)

// WithRefreshID links an access token to its refresh token.
func WithRefreshID(id string) ClaimOption {
	return WithExtension(ExtRefreshID, id)
}

// RefreshID returns the linked refresh token id, or "".
func (c *Claims) RefreshID() string {
	id, _ := c.Ext[ExtRefreshID].(string)
	return id
}

// WithExtension adds an entry to the ext claim.
func WithExtension(key string, value any) ClaimOption {
	return func(c *Claims) {
		if c.Ext == nil {
			c.Ext = map[string]any{}
		}
		c.Ext[key] = value
	}
}

func (i *Issuer) registered(subject string, now time.Time, ttl time.Duration) (jwt.RegisteredClaims, error) {
	id, err := common.MakeRandHexString(tokenIDBytes)
	if err != nil {
		return jwt.RegisteredClaims{}, fmt.Errorf("token id: %w", err)
	}
	rc := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        id,
		Issuer:    i.s.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if i.s.Audience != "" {
		rc.Audience = jwt.ClaimStrings{i.s.Audience}
	}
	return rc, nil
}

func (i *Issuer) sign(c *Claims) (*IssuedToken, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.s.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &IssuedToken{Token: token, Claims: c}, nil
}

// IssueAccess mints an access token for u valid for AccessTTL from now.
func (i *Issuer) IssueAccess(u *models.User, now time.Time, opts ...ClaimOption) (*IssuedToken, error) {
	rc, err := i.registered(u.ID, now, i.s.AccessTTL)
	if err != nil {
		return nil, err
	}
	c := &Claims{
		RegisteredClaims: rc,
		Type:             TokenTypeAccess,
		Username:         u.UserName,
		Email:            u.Email,
		UserType:         u.UserType,
		Name:             u.FullName(),
	}
	for _, o := range opts {
		o(c)
	}
	return i.sign(c)
}

// IssueRefresh mints a refresh token valid for RefreshTTL from now.
// The caller registers the matching record.
func (i *Issuer) IssueRefresh(subjectID string, now time.Time) (*IssuedToken, error) {
	rc, err := i.registered(subjectID, now, i.s.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return i.sign(&Claims{RegisteredClaims: rc, Type: TokenTypeRefresh})
}

// RevocationChecker reports whether a token id is blacklisted.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error)
}

// RefreshRecords looks up live refresh token records.
type RefreshRecords interface {
	Find(ctx context.Context, tokenID string) (*models.RefreshToken, error)
}

type Verifier struct {
	s       Settings
	revoked RevocationChecker
	records RefreshRecords
	parser  *jwt.Parser
}

func NewVerifier(s Settings, revoked RevocationChecker, records RefreshRecords) *Verifier {
	return &Verifier{
		s:       s,
		revoked: revoked,
		records: records,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

type verifyOptions struct {
	skipRecord bool
}

type VerifyOption func(*verifyOptions)

// SkipRecordCheck disables the refresh record lookup. Used when the caller
// intends to repair a missing record.
func SkipRecordCheck() VerifyOption {
	return func(o *verifyOptions) { o.skipRecord = true }
}

func storeErr(err error) error {
	if errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}

// Verify checks, in order: signature, expiry, issuer and audience, token
// type, revocation and, for refresh tokens, the live record. Each failing
// step maps to one error kind from internal/common.
func (v *Verifier) Verify(ctx context.Context, token string, expected TokenType, now time.Time, opts ...VerifyOption) (*Claims, error) {
	var o verifyOptions
	for _, fn := range opts {
		fn(&o)
	}

	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.s.Secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", common.ErrInvalidToken)
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, common.ErrTokenExpired
	}

	vopts := []jwt.ParserOption{jwt.WithTimeFunc(func() time.Time { return now })}
	if v.s.Issuer != "" {
		vopts = append(vopts, jwt.WithIssuer(v.s.Issuer))
	}
	if v.s.Audience != "" {
		vopts = append(vopts, jwt.WithAudience(v.s.Audience))
	}
	if err := jwt.NewValidator(vopts...).Validate(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if claims.Type != expected {
		return nil, fmt.Errorf("%w: expected %s token, got %s", common.ErrInvalidToken, expected, claims.Type)
	}

	if v.revoked != nil {
		revoked, err := v.revoked.IsRevoked(ctx, claims.ID, now)
		if err != nil {
			return nil, storeErr(err)
		}
		if revoked {
			return nil, common.ErrTokenRevoked
		}
	}

	if expected == TokenTypeRefresh && !o.skipRecord && v.records != nil {
		if _, err := v.records.Find(ctx, claims.ID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrTokenRevoked
			}
			return nil, storeErr(err)
		}
	}

	return claims, nil
}
