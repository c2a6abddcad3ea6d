// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

// Token types carried in the "type" claim.
const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the payload of both token kinds. Refresh tokens leave the display
// name empty.
type Claims struct {
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Type      TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenConfig holds signing material and lifetimes.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
}

// TokenCodec issues and verifies HS256 tokens. It is safe for concurrent use.
type TokenCodec struct {
	cfg TokenConfig
	now func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithCodecClock overrides the codec's time source.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec validates cfg and returns a codec. The access and refresh
// secrets must both be set and must differ.
func NewTokenCodec(cfg TokenConfig, opts ...CodecOption) (*TokenCodec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("access_ttl", cfg.AccessTTL).
			With("refresh_ttl", cfg.RefreshTTL).
			Errorf("token lifetimes must be positive")
	}
	c := &TokenCodec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// IssueAccess signs a short-lived access token for identity.
func (c *TokenCodec) IssueAccess(identity *Identity) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.cfg.AccessTTL)
	claims := &Claims{
		Email:            identity.Email,
		Role:             identity.Role,
		FirstName:        identity.FirstName,
		LastName:         identity.LastName,
		Type:             TokenAccess,
		RegisteredClaims: c.registered(identity.ID, now, expiresAt),
	}
	token, err := c.sign(claims, c.cfg.AccessSecret)
	return token, expiresAt, err
}

// IssueRefresh signs a long-lived refresh token for identity.
func (c *TokenCodec) IssueRefresh(identity *Identity) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.cfg.RefreshTTL)
	claims := &Claims{
		Email:            identity.Email,
		Role:             identity.Role,
		Type:             TokenRefresh,
		RegisteredClaims: c.registered(identity.ID, now, expiresAt),
	}
	token, err := c.sign(claims, c.cfg.RefreshSecret)
	return token, expiresAt, err
}

// IssuePair issues a fresh access and refresh token for identity.
func (c *TokenCodec) IssuePair(identity *Identity) (*TokenPair, error) {
	access, accessExp, err := c.IssueAccess(identity)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := c.IssueRefresh(identity)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		ExpiresIn:        int64(c.cfg.AccessTTL / time.Second),
	}, nil
}

func (c *TokenCodec) registered(subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    c.cfg.Issuer,
		Audience:  jwt.ClaimStrings{c.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (c *TokenCodec) sign(claims *Claims, secret []byte) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("type", string(claims.Type)).Wrap(err)
	}
	return signed, nil
}

// Verify checks the signature, lifetime, issuer, audience and type of token.
// The secret is chosen by expected, so a token of the other kind fails on its
// signature before the type claim is even read. Errors carry CodeTokenExpired
// or CodeTokenInvalid.
func (c *TokenCodec) Verify(token string, expected TokenType) (*Claims, error) {
	var secret []byte
	switch expected {
	case TokenAccess:
		secret = c.cfg.AccessSecret
	case TokenRefresh:
		secret = c.cfg.RefreshSecret
	default:
		return nil, oops.Code(CodeTokenInvalid).With("expected", string(expected)).Errorf("unknown token type")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		code := CodeTokenInvalid
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = CodeTokenExpired
		}
		return nil, oops.Code(code).
			With("expected", string(expected)).
			With("cause", err.Error()).
			Errorf(MsgTokenInvalid)
	}
	if claims.Type != expected {
		return nil, oops.Code(CodeTokenInvalid).
			With("expected", string(expected)).
			With("actual", string(claims.Type)).
			Errorf(MsgTokenInvalid)
	}
	if claims.Subject == "" {
		return nil, oops.Code(CodeTokenInvalid).Errorf(MsgTokenInvalid)
	}
	return claims, nil
}

// RemainingSeconds decodes token without verifying it and returns the whole
// seconds until expiry, floored at zero. Only for client-facing hints.
func (c *TokenCodec) RemainingSeconds(token string) int64 {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	if claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Unix() - c.now().Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// StructurallyValid reports whether token has exactly three non-empty,
// base64url-decodable segments. It does no cryptographic work.
func StructurallyValid(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		if _, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part, "=")); err != nil {
			return false
		}
	}
	return true
}

// Fingerprint returns a short, non-reversible tag for token suitable for logs.
func Fingerprint(token string) string {
	return tokenKey(token)[:12]
}

// tokenKey is the revocation key for token. Raw token strings never reach the
// revocation store.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
