// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/auth"
	"github.com/lfa-academy/lfa-server/internal/store"
)

// RevocationStore implements auth.RevocationStore on the revoked_tokens
// table so revocations are shared by every instance using the database.
type RevocationStore struct {
	db store.Querier
}

var _ auth.RevocationStore = (*RevocationStore)(nil)

// NewRevocationStore creates a new RevocationStore.
func NewRevocationStore(db store.Querier) *RevocationStore {
	return &RevocationStore{db: db}
}

// Add inserts key, or replaces an entry that has already expired. A live
// entry is left alone and Add reports false, which makes concurrent claims
// on one key resolve to a single winner.
func (s *RevocationStore) Add(ctx context.Context, key string, now, expiresAt time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO revoked_tokens (token_hash, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE
			SET revoked_at = EXCLUDED.revoked_at, expires_at = EXCLUDED.expires_at
			WHERE revoked_tokens.expires_at <= $2
	`, key, now, expiresAt)
	if err != nil {
		return false, oops.With("operation", "insert revoked token").Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Contains reports whether key has an entry that is still live at now.
func (s *RevocationStore) Contains(ctx context.Context, key string, now time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_hash = $1 AND expires_at > $2)`,
		key, now).Scan(&exists)
	if err != nil {
		return false, oops.With("operation", "check revoked token").Wrap(err)
	}
	return exists, nil
}

// Prune deletes expired entries.
func (s *RevocationStore) Prune(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.With("operation", "prune revoked tokens").Wrap(err)
	}
	return int(tag.RowsAffected()), nil
}
