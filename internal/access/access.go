// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package access decides whether an authenticated identity may reach a
// resource. Role checks are pure functions of the identity; resource checks
// consult a RelationshipStore on every call and never cache its answers, so a
// player moving teams is reflected on the next request.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/auth"
)

// CodeForbidden is the error code for every authorization denial.
const CodeForbidden = "ACCESS_FORBIDDEN"

// ErrNotFound is returned by a RelationshipStore when a record does not exist.
var ErrNotFound = errors.New("not found")

// ResourceKind names a guarded resource type.
type ResourceKind string

// Guarded resource types.
const (
	ResourcePlayer  ResourceKind = "player"
	ResourceTeam    ResourceKind = "team"
	ResourceMessage ResourceKind = "message"
)

// Reasons recorded on a Decision.
const (
	ReasonAdmin          = "admin"
	ReasonSelf           = "self"
	ReasonOwner          = "owner"
	ReasonCoachTeam      = "coach_team"
	ReasonTeamMember     = "team_member"
	ReasonGuardian       = "guardian"
	ReasonGuardianTeam   = "guardian_team"
	ReasonParticipant    = "participant"
	ReasonNoRelationship = "no_relationship"
	ReasonNotFound       = "not_found"
	ReasonRole           = "role"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Reason: reason} }

// Err converts a denial into a forbidden error for kind. It returns nil when
// the decision allows access.
func (d Decision) Err(kind ResourceKind, id string) error {
	if d.Allowed {
		return nil
	}
	return ErrResourceForbidden(kind, id, d.Reason)
}

// ErrRoleForbidden reports that the caller's role is not among roles.
func ErrRoleForbidden(actual auth.Role, roles ...auth.Role) error {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return oops.Code(CodeForbidden).
		With("role", actual.String()).
		With("required", names).
		Errorf("Access denied. Required role(s): %s", strings.Join(names, ", "))
}

// ErrMinimumRole reports that the caller's role ranks below minimum.
func ErrMinimumRole(actual, minimum auth.Role) error {
	return oops.Code(CodeForbidden).
		With("role", actual.String()).
		With("minimum", minimum.String()).
		Errorf("Access denied. Minimum role required: %s", minimum)
}

// ErrResourceForbidden reports a denied resource check.
func ErrResourceForbidden(kind ResourceKind, id, reason string) error {
	return oops.Code(CodeForbidden).
		With("resource", string(kind)).
		With("resource_id", id).
		With("reason", reason).
		Errorf("Access denied to this %s", kind)
}

// ErrNotOwner reports a failed ownership check.
func ErrNotOwner(ownerID string) error {
	return oops.Code(CodeForbidden).
		With("owner_id", ownerID).
		With("reason", ReasonNoRelationship).
		Errorf("Access denied. You can only access your own resources")
}

// RequireRoles succeeds when identity holds one of roles exactly. Admin gets
// no special treatment; use RequireRolesOrAdmin for that.
func RequireRoles(identity *auth.Identity, roles ...auth.Role) error {
	if identity == nil {
		return auth.ErrTokenMissing()
	}
	for _, r := range roles {
		if identity.Role == r {
			return nil
		}
	}
	return ErrRoleForbidden(identity.Role, roles...)
}

// RequireRolesOrAdmin is RequireRoles where admin satisfies any role set.
func RequireRolesOrAdmin(identity *auth.Identity, roles ...auth.Role) error {
	if identity != nil && identity.Role == auth.RoleAdmin {
		return nil
	}
	return RequireRoles(identity, roles...)
}

// RequireMinimumRole succeeds when identity ranks at least minimum in the
// role hierarchy.
func RequireMinimumRole(identity *auth.Identity, minimum auth.Role) error {
	if identity == nil {
		return auth.ErrTokenMissing()
	}
	if !identity.Role.AtLeast(minimum) {
		return ErrMinimumRole(identity.Role, minimum)
	}
	return nil
}

// CheckOwnership allows admins and the identity whose id equals ownerID.
func CheckOwnership(identity *auth.Identity, ownerID string) Decision {
	switch {
	case identity == nil:
		return deny(ReasonNoRelationship)
	case identity.Role == auth.RoleAdmin:
		return allow(ReasonAdmin)
	case ownerID != "" && identity.ID == ownerID:
		return allow(ReasonOwner)
	}
	return deny(ReasonNoRelationship)
}

// ParseResourceKind converts a path segment such as "players" or "team".
func ParseResourceKind(s string) (ResourceKind, error) {
	switch strings.TrimSuffix(strings.ToLower(s), "s") {
	case string(ResourcePlayer):
		return ResourcePlayer, nil
	case string(ResourceTeam):
		return ResourceTeam, nil
	case string(ResourceMessage):
		return ResourceMessage, nil
	}
	return "", oops.Code("RESOURCE_KIND_INVALID").With("kind", s).Errorf("unknown resource type %q", s)
}

// PlayerRecord is the team assignment of a player profile.
type PlayerRecord struct {
	ID     string
	UserID string
	// TeamID is empty when the player has no team.
	TeamID string
}

// MessageParticipants are the two identities attached to a message.
type MessageParticipants struct {
	SenderID    string
	RecipientID string
}

// RelationshipStore answers the relationship questions resource checks
// depend on. Lookups of missing records return an error matching ErrNotFound.
type RelationshipStore interface {
	// PlayerByID returns the player profile with the given id.
	PlayerByID(ctx context.Context, playerID string) (*PlayerRecord, error)

	// PlayerByUser returns the player profile owned by a user.
	PlayerByUser(ctx context.Context, userID string) (*PlayerRecord, error)

	// CoachTeam returns the team a coach is assigned to, or "".
	CoachTeam(ctx context.Context, userID string) (string, error)

	// IsGuardian reports whether a family relationship links parent to player.
	IsGuardian(ctx context.Context, parentUserID, playerID string) (bool, error)

	// GuardsTeamMember reports whether parent is linked to any player on team.
	GuardsTeamMember(ctx context.Context, parentUserID, teamID string) (bool, error)

	// Participants returns the sender and recipient of a message.
	Participants(ctx context.Context, messageID string) (*MessageParticipants, error)
}

func describe(kind ResourceKind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}
