// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes for authentication failures.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountDisabled    = "AUTH_ACCOUNT_DISABLED"
	CodeTokenMissing       = "TOKEN_MISSING"
	CodeTokenFormat        = "TOKEN_INVALID_FORMAT"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeUserInvalid        = "AUTH_USER_INVALID"
	CodeRefreshInvalid     = "TOKEN_REFRESH_INVALID"
	CodeRateLimited        = "RATE_LIMITED"
)

// User-facing messages. Credential failures share one message so responses do
// not reveal whether an email is registered.
const (
	MsgInvalidCredentials  = "Invalid email or password"
	MsgAccountDisabled     = "Account is disabled"
	MsgTokenMissing        = "Access token required"
	MsgRefreshTokenMissing = "Refresh token required"
	MsgTokenFormat         = "Invalid token format"
	MsgTokenRevoked        = "Token has been revoked"
	MsgTokenInvalid        = "Invalid or expired token"
	MsgUserNotFound        = "User not found"
	MsgUserInvalid         = "User not found or inactive"
	MsgRefreshInvalid      = "Invalid refresh token"
	MsgRateLimited         = "Too many requests, please try again later"
)

// ErrValidation creates an error for malformed input.
func ErrValidation(field, reason string) error {
	return oops.Code(CodeValidation).
		With("field", field).
		Errorf("%s", reason)
}

// ErrInvalidCredentials creates the enumeration-safe login failure.
func ErrInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf(MsgInvalidCredentials)
}

// ErrAccountDisabled creates an error for an inactive identity.
func ErrAccountDisabled(identityID string) error {
	return oops.Code(CodeAccountDisabled).
		With("identity_id", identityID).
		Errorf(MsgAccountDisabled)
}

// ErrTokenMissing creates an error for an absent or malformed bearer header.
func ErrTokenMissing() error {
	return oops.Code(CodeTokenMissing).Errorf(MsgTokenMissing)
}

// ErrRefreshTokenMissing creates an error for a refresh call without a token.
func ErrRefreshTokenMissing() error {
	return oops.Code(CodeTokenMissing).Errorf(MsgRefreshTokenMissing)
}

// ErrTokenFormat creates an error for a token that is not three base64url segments.
func ErrTokenFormat() error {
	return oops.Code(CodeTokenFormat).Errorf(MsgTokenFormat)
}

// ErrTokenRevoked creates an error for a revoked token.
func ErrTokenRevoked(fingerprint string) error {
	return oops.Code(CodeTokenRevoked).
		With("token", fingerprint).
		Errorf(MsgTokenRevoked)
}

// ErrUserNotFound creates an error for a token whose subject no longer exists.
func ErrUserNotFound(identityID string) error {
	return oops.Code(CodeUserNotFound).
		With("identity_id", identityID).
		Errorf(MsgUserNotFound)
}

// ErrUserInvalid creates an error for a refresh whose subject is gone or inactive.
func ErrUserInvalid(identityID string) error {
	return oops.Code(CodeUserInvalid).
		With("identity_id", identityID).
		Errorf(MsgUserInvalid)
}

// ErrRefreshInvalid creates an error for a refresh token that fails verification.
func ErrRefreshInvalid(cause string) error {
	return oops.Code(CodeRefreshInvalid).
		With("cause", cause).
		Errorf(MsgRefreshInvalid)
}

// ErrRateLimited creates an error carrying the retry-after hint in seconds.
func ErrRateLimited(retryAfterSeconds int) error {
	return oops.Code(CodeRateLimited).
		With("retry_after", retryAfterSeconds).
		Errorf(MsgRateLimited)
}

// IsTokenFailure reports whether code belongs to the 401 token family.
func IsTokenFailure(code string) bool {
	switch code {
	case CodeTokenMissing, CodeTokenFormat, CodeTokenRevoked, CodeTokenInvalid,
		CodeTokenExpired, CodeUserNotFound, CodeUserInvalid, CodeRefreshInvalid:
		return true
	}
	return false
}
