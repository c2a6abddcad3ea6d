// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package accesstest provides an in-memory RelationshipStore for tests.
package accesstest

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/access"
)

// Relationships is a map-backed access.RelationshipStore. Fail, when set,
// is returned from every lookup.
type Relationships struct {
	mu        sync.RWMutex
	players   map[string]access.PlayerRecord // playerID -> record
	coaches   map[string]string              // userID -> teamID
	guardians map[string]map[string]bool     // parent userID -> playerIDs
	messages  map[string]access.MessageParticipants
	Fail      error
}

var _ access.RelationshipStore = (*Relationships)(nil)

// NewRelationships returns an empty store.
func NewRelationships() *Relationships {
	return &Relationships{
		players:   make(map[string]access.PlayerRecord),
		coaches:   make(map[string]string),
		guardians: make(map[string]map[string]bool),
		messages:  make(map[string]access.MessageParticipants),
	}
}

// AddPlayer registers a player profile owned by userID on teamID.
func (r *Relationships) AddPlayer(playerID, userID, teamID string) *Relationships {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[playerID] = access.PlayerRecord{ID: playerID, UserID: userID, TeamID: teamID}
	return r
}

// MovePlayer reassigns a player to teamID.
func (r *Relationships) MovePlayer(playerID, teamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.players[playerID]
	p.TeamID = teamID
	r.players[playerID] = p
}

// AddCoach assigns a coach user to teamID.
func (r *Relationships) AddCoach(userID, teamID string) *Relationships {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coaches[userID] = teamID
	return r
}

// LinkGuardian links a parent user to a player.
func (r *Relationships) LinkGuardian(parentUserID, playerID string) *Relationships {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.guardians[parentUserID] == nil {
		r.guardians[parentUserID] = make(map[string]bool)
	}
	r.guardians[parentUserID][playerID] = true
	return r
}

// AddMessage registers a message between sender and recipient.
func (r *Relationships) AddMessage(messageID, senderID, recipientID string) *Relationships {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[messageID] = access.MessageParticipants{SenderID: senderID, RecipientID: recipientID}
	return r
}

func notFound(kind, id string) error {
	return oops.Code("RELATIONSHIP_NOT_FOUND").With(kind, id).Wrap(access.ErrNotFound)
}

// PlayerByID implements access.RelationshipStore.
func (r *Relationships) PlayerByID(_ context.Context, playerID string) (*access.PlayerRecord, error) {
	if r.Fail != nil {
		return nil, r.Fail
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[playerID]
	if !ok {
		return nil, notFound("player_id", playerID)
	}
	return &p, nil
}

// PlayerByUser implements access.RelationshipStore.
func (r *Relationships) PlayerByUser(_ context.Context, userID string) (*access.PlayerRecord, error) {
	if r.Fail != nil {
		return nil, r.Fail
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, notFound("user_id", userID)
}

// CoachTeam implements access.RelationshipStore.
func (r *Relationships) CoachTeam(_ context.Context, userID string) (string, error) {
	if r.Fail != nil {
		return "", r.Fail
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	team, ok := r.coaches[userID]
	if !ok {
		return "", notFound("user_id", userID)
	}
	return team, nil
}

// IsGuardian implements access.RelationshipStore.
func (r *Relationships) IsGuardian(_ context.Context, parentUserID, playerID string) (bool, error) {
	if r.Fail != nil {
		return false, r.Fail
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.guardians[parentUserID][playerID], nil
}

// GuardsTeamMember implements access.RelationshipStore.
func (r *Relationships) GuardsTeamMember(_ context.Context, parentUserID, teamID string) (bool, error) {
	if r.Fail != nil {
		return false, r.Fail
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for playerID := range r.guardians[parentUserID] {
		if p, ok := r.players[playerID]; ok && p.TeamID != "" && p.TeamID == teamID {
			return true, nil
		}
	}
	return false, nil
}

// Participants implements access.RelationshipStore.
func (r *Relationships) Participants(_ context.Context, messageID string) (*access.MessageParticipants, error) {
	if r.Fail != nil {
		return nil, r.Fail
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[messageID]
	if !ok {
		return nil, notFound("message_id", messageID)
	}
	return &m, nil
}
