// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lfa-academy/lfa-server/pkg/errutil"
)

var tracer = otel.Tracer("lfa/auth")

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Identity *Identity
	Claims   *Claims
	// Token is the raw access token the caller presented.
	Token string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Identity *Identity
	Tokens   *TokenPair
}

// SessionManager coordinates login, logout, refresh and verification.
type SessionManager struct {
	identities  IdentityDirectory
	verifier    CredentialVerifier
	codec       *TokenCodec
	revocations *RevocationRegistry
	logger      *slog.Logger
	now         func() time.Time

	decoyHash     string
	rehasher      PasswordHasher
	passwordStore PasswordStore
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionLogger sets the logger for best-effort failures.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(m *SessionManager) {
		m.logger = logger
	}
}

// WithSessionClock overrides the time recorded as last login.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) {
		m.now = now
	}
}

// WithDecoyHash sets the hash verified when no identity matches an email.
// Pick one from DecoyHash for the scheme most stored hashes use, so unknown
// emails and wrong passwords take the same time.
func WithDecoyHash(hash string) SessionOption {
	return func(m *SessionManager) {
		m.decoyHash = hash
	}
}

// WithPasswordUpgrade rehashes non-argon2id passwords with hasher after a
// successful login and saves them through store.
func WithPasswordUpgrade(hasher PasswordHasher, store PasswordStore) SessionOption {
	return func(m *SessionManager) {
		m.rehasher = hasher
		m.passwordStore = store
	}
}

// NewSessionManager creates a SessionManager. All collaborators are required.
func NewSessionManager(
	identities IdentityDirectory,
	verifier CredentialVerifier,
	codec *TokenCodec,
	revocations *RevocationRegistry,
	opts ...SessionOption,
) (*SessionManager, error) {
	if identities == nil {
		return nil, oops.Code("SESSION_CONFIG_INVALID").Errorf("identity directory is required")
	}
	if verifier == nil {
		return nil, oops.Code("SESSION_CONFIG_INVALID").Errorf("credential verifier is required")
	}
	if codec == nil {
		return nil, oops.Code("SESSION_CONFIG_INVALID").Errorf("token codec is required")
	}
	if revocations == nil {
		return nil, oops.Code("SESSION_CONFIG_INVALID").Errorf("revocation registry is required")
	}
	m := &SessionManager{
		identities:  identities,
		verifier:    verifier,
		codec:       codec,
		revocations: revocations,
		logger:      slog.Default(),
		now:         time.Now,
		decoyHash:   argon2idDecoy,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Codec returns the token codec, for callers that need token hints.
func (m *SessionManager) Codec() *TokenCodec {
	return m.codec
}

// Login authenticates email and password and issues a token pair.
// Unknown emails and wrong passwords produce the same error.
func (m *SessionManager) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "session.login")
	defer func() { finish(span, "login", err) }()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrValidation("email", "Email and password are required")
	}

	identity, err := m.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.verifier.Verify(password, m.decoyHash)
			return nil, ErrInvalidCredentials()
		}
		return nil, oops.With("operation", "find identity by email").Wrap(err)
	}
	span.SetAttributes(attribute.String("identity.id", identity.ID))

	if !identity.Active {
		return nil, ErrAccountDisabled(identity.ID)
	}
	if !m.verifier.Verify(password, identity.PasswordHash) {
		return nil, ErrInvalidCredentials()
	}

	if NeedsUpgrade(identity.PasswordHash) {
		m.upgradePassword(ctx, identity, password)
	}

	now := m.now()
	if updateErr := m.identities.UpdateLastLogin(ctx, identity.ID, now); updateErr != nil {
		errutil.LogError(m.logger, "failed to record last login", updateErr)
	} else {
		identity.LastLogin = &now
	}

	pair, err := m.codec.IssuePair(identity)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Identity: identity, Tokens: pair}, nil
}

// upgradePassword replaces a legacy hash. Failures are logged and the old hash
// keeps working.
func (m *SessionManager) upgradePassword(ctx context.Context, identity *Identity, password string) {
	if m.rehasher == nil || m.passwordStore == nil {
		return
	}
	hash, err := m.rehasher.Hash(password)
	if err != nil {
		errutil.LogError(m.logger, "failed to rehash password", err)
		return
	}
	if err := m.passwordStore.UpdatePasswordHash(ctx, identity.ID, hash); err != nil {
		errutil.LogError(m.logger, "failed to store upgraded password hash", err)
		return
	}
	identity.PasswordHash = hash
	m.logger.Info("upgraded password hash", "identity_id", identity.ID)
}

// Logout revokes whichever of the two tokens are present and were signed by
// this codec. Tokens that fail verification are skipped, so arbitrary strings
// never reach the revocation store. It never fails: revocation errors are
// logged and swallowed.
func (m *SessionManager) Logout(ctx context.Context, accessToken, refreshToken string) {
	ctx, span := tracer.Start(ctx, "session.logout")
	defer span.End()

	presented := []struct {
		token string
		typ   TokenType
	}{
		{accessToken, TokenAccess},
		{refreshToken, TokenRefresh},
	}
	for _, p := range presented {
		if p.token == "" {
			continue
		}
		if _, err := m.codec.Verify(p.token, p.typ); err != nil {
			m.logger.Debug("logout skipped unverifiable token",
				"type", string(p.typ),
				"code", errutil.CodeOf(err),
			)
			continue
		}
		if err := m.revocations.Revoke(ctx, p.token); err != nil {
			span.RecordError(err)
			errutil.LogError(m.logger, "logout revocation failed", err)
			continue
		}
		RecordRevocation(ReasonLogout)
	}
	RecordSessionOperation("logout", OutcomeSuccess, "")
}

// Refresh exchanges a refresh token for a new token pair. The presented token
// is consumed: a second refresh with it fails with CodeTokenRevoked, including
// when two refreshes race.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "session.refresh")
	defer func() { finish(span, "refresh", err) }()

	if refreshToken == "" {
		return nil, ErrRefreshTokenMissing()
	}

	claims, err := m.codec.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return nil, ErrRefreshInvalid(errutil.CodeOf(err))
	}
	span.SetAttributes(attribute.String("identity.id", claims.Subject))

	revoked, err := m.revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked(Fingerprint(refreshToken))
	}

	identity, err := m.identities.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserInvalid(claims.Subject)
		}
		return nil, oops.With("operation", "find identity by id").Wrap(err)
	}
	if !identity.Active {
		return nil, ErrUserInvalid(identity.ID)
	}

	claimed, err := m.revocations.Claim(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrTokenRevoked(Fingerprint(refreshToken))
	}
	RecordRevocation(ReasonRotation)

	return m.codec.IssuePair(identity)
}

// Authenticate extracts the bearer token from an Authorization header value
// and verifies it.
func (m *SessionManager) Authenticate(ctx context.Context, authorization string) (*Principal, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		RecordSessionOperation("verify", OutcomeFailure, CodeTokenMissing)
		return nil, ErrTokenMissing()
	}
	return m.Verify(ctx, token)
}

// Verify checks an access token and loads its identity. Checks run in a fixed
// order: format, revocation, signature and claims, identity existence, and
// finally the active flag. The first failure determines the error code.
func (m *SessionManager) Verify(ctx context.Context, token string) (principal *Principal, err error) {
	ctx, span := tracer.Start(ctx, "session.verify")
	defer func() { finish(span, "verify", err) }()

	if !StructurallyValid(token) {
		return nil, ErrTokenFormat()
	}

	revoked, err := m.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked(Fingerprint(token))
	}

	claims, err := m.codec.Verify(token, TokenAccess)
	if err != nil {
		return nil, err
	}

	identity, err := m.identities.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound(claims.Subject)
		}
		return nil, oops.With("operation", "find identity by id").Wrap(err)
	}
	if !identity.Active {
		return nil, ErrAccountDisabled(identity.ID)
	}

	span.SetAttributes(
		attribute.String("identity.id", identity.ID),
		attribute.String("identity.role", identity.Role.String()),
	)
	return &Principal{Identity: identity, Claims: claims, Token: token}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(authorization string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// finish records the outcome of a session operation on its span and metrics.
func finish(span trace.Span, operation string, err error) {
	switch {
	case err == nil:
		RecordSessionOperation(operation, OutcomeSuccess, "")
	case isClientFailure(errutil.CodeOf(err)):
		RecordSessionOperation(operation, OutcomeFailure, errutil.CodeOf(err))
		span.SetAttributes(attribute.String("auth.failure", errutil.CodeOf(err)))
	default:
		RecordSessionOperation(operation, OutcomeError, "")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func isClientFailure(code string) bool {
	switch code {
	case CodeValidation, CodeInvalidCredentials, CodeAccountDisabled:
		return true
	}
	return IsTokenFailure(code)
}
