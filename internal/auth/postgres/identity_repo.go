// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package postgres implements the auth storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/auth"
	"github.com/lfa-academy/lfa-server/internal/store"
)

const identityColumns = `id, email, password_hash, role, is_active, email_verified,
		first_name, last_name, last_login, created_at, updated_at`

// IdentityRepository implements auth.IdentityDirectory over the users table.
type IdentityRepository struct {
	db store.Querier
}

var _ auth.IdentityDirectory = (*IdentityRepository)(nil)

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(db store.Querier) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// FindByID retrieves an identity by id.
func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*auth.Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE id = $1`, id)
	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_QUERY_FAILED").
			With("operation", "find identity by id").
			With("id", id).
			Wrap(err)
	}
	return identity, nil
}

// FindByEmail retrieves an identity by email, ignoring case.
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE LOWER(email) = $1`, auth.NormalizeEmail(email))
	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_QUERY_FAILED").
			With("operation", "find identity by email").
			Wrap(err)
	}
	return identity, nil
}

// UpdateLastLogin records a successful login.
func (r *IdentityRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", "update last login").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *IdentityRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		identity auth.Identity
		role     string
	)
	err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&role,
		&identity.Active,
		&identity.EmailVerified,
		&identity.FirstName,
		&identity.LastName,
		&identity.LastLogin,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	identity.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, oops.With("id", identity.ID).Wrap(err)
	}
	return &identity, nil
}
