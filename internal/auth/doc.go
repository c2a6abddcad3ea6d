// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package auth implements authentication for the academy API.
//
// # Components
//
//   - Verifier checks plaintext passwords against stored argon2id or bcrypt hashes.
//   - TokenCodec issues and verifies signed access and refresh tokens. The two
//     token kinds use distinct secrets and carry a type claim that must match
//     the verification context.
//   - RevocationRegistry records revoked tokens until a retention deadline.
//     Entries expire lazily on read; an optional sweeper prunes them.
//   - RateLimiter is a fixed-window counter keyed by caller-supplied strings.
//   - SessionManager drives login, logout, refresh and verification on top of
//     the components above and an IdentityDirectory.
//
// Failures are oops errors carrying one of the Code* constants from errors.go.
package auth
