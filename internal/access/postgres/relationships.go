// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package postgres implements access.RelationshipStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/access"
	"github.com/lfa-academy/lfa-server/internal/store"
)

// RelationshipStore reads team assignments, family links and message
// participants. Every call hits the database.
type RelationshipStore struct {
	db store.Querier
}

var _ access.RelationshipStore = (*RelationshipStore)(nil)

// NewRelationshipStore creates a new RelationshipStore.
func NewRelationshipStore(db store.Querier) *RelationshipStore {
	return &RelationshipStore{db: db}
}

// PlayerByID implements access.RelationshipStore.
func (s *RelationshipStore) PlayerByID(ctx context.Context, playerID string) (*access.PlayerRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT id, user_id, COALESCE(team_id, '') FROM players WHERE id = $1`, playerID)
	return scanPlayer(row, "player_id", playerID)
}

// PlayerByUser implements access.RelationshipStore.
func (s *RelationshipStore) PlayerByUser(ctx context.Context, userID string) (*access.PlayerRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT id, user_id, COALESCE(team_id, '') FROM players WHERE user_id = $1`, userID)
	return scanPlayer(row, "user_id", userID)
}

func scanPlayer(row pgx.Row, key, value string) (*access.PlayerRecord, error) {
	var p access.PlayerRecord
	err := row.Scan(&p.ID, &p.UserID, &p.TeamID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PLAYER_NOT_FOUND").With(key, value).Wrap(access.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RELATIONSHIP_QUERY_FAILED").
			With("operation", "get player").
			With(key, value).
			Wrap(err)
	}
	return &p, nil
}

// CoachTeam implements access.RelationshipStore.
func (s *RelationshipStore) CoachTeam(ctx context.Context, userID string) (string, error) {
	var teamID string
	err := s.db.QueryRow(ctx, `SELECT COALESCE(team_id, '') FROM coaches WHERE user_id = $1`, userID).Scan(&teamID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.Code("COACH_NOT_FOUND").With("user_id", userID).Wrap(access.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("RELATIONSHIP_QUERY_FAILED").
			With("operation", "get coach team").
			With("user_id", userID).
			Wrap(err)
	}
	return teamID, nil
}

// IsGuardian implements access.RelationshipStore.
func (s *RelationshipStore) IsGuardian(ctx context.Context, parentUserID, playerID string) (bool, error) {
	var linked bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM family_relationships
			WHERE parent_user_id = $1 AND player_id = $2
		)`, parentUserID, playerID).Scan(&linked)
	if err != nil {
		return false, oops.Code("RELATIONSHIP_QUERY_FAILED").
			With("operation", "check guardian").
			With("user_id", parentUserID).
			With("player_id", playerID).
			Wrap(err)
	}
	return linked, nil
}

// GuardsTeamMember implements access.RelationshipStore.
func (s *RelationshipStore) GuardsTeamMember(ctx context.Context, parentUserID, teamID string) (bool, error) {
	var linked bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM family_relationships fr
			JOIN players p ON p.id = fr.player_id
			WHERE fr.parent_user_id = $1 AND p.team_id = $2
		)`, parentUserID, teamID).Scan(&linked)
	if err != nil {
		return false, oops.Code("RELATIONSHIP_QUERY_FAILED").
			With("operation", "check guardian team").
			With("user_id", parentUserID).
			With("team_id", teamID).
			Wrap(err)
	}
	return linked, nil
}

// Participants implements access.RelationshipStore.
func (s *RelationshipStore) Participants(ctx context.Context, messageID string) (*access.MessageParticipants, error) {
	var p access.MessageParticipants
	err := s.db.QueryRow(ctx, `SELECT sender_id, recipient_id FROM messages WHERE id = $1`, messageID).
		Scan(&p.SenderID, &p.RecipientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("MESSAGE_NOT_FOUND").With("message_id", messageID).Wrap(access.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RELATIONSHIP_QUERY_FAILED").
			With("operation", "get message participants").
			With("message_id", messageID).
			Wrap(err)
	}
	return &p, nil
}
