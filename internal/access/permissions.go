// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package access

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/auth"
)

// Permission names, written as action:resource[:scope].
const (
	PermManageUsers         = "manage:users"
	PermManageTeams         = "manage:teams"
	PermManagePlayers       = "manage:players"
	PermManageCoaches       = "manage:coaches"
	PermViewAllPlayers      = "view:players:all"
	PermManageMatches       = "manage:matches"
	PermManageTrainings     = "manage:trainings"
	PermCreateAnnouncements = "create:announcements"
	PermSendMessages        = "send:messages"
	PermViewReports         = "view:reports"
	PermViewOwnChildren     = "view:children:own"
)

// Permission groups. Roles compose these rather than inheriting, so a parent
// can see their children while an admin cannot claim to have any.
var memberPowers = []string{
	PermSendMessages,
	"view:announcements",
}

var familyPowers = []string{
	PermViewOwnChildren,
}

var staffPowers = []string{
	PermManagePlayers,
	"view:players:*",
	PermManageMatches,
	PermManageTrainings,
	PermCreateAnnouncements,
	PermViewReports,
}

var adminPowers = []string{
	"manage:*",
	"view:players:*",
	"view:reports",
	"create:*",
}

// DefaultRolePermissions returns the permission patterns of each role.
func DefaultRolePermissions() map[auth.Role][]string {
	return map[auth.Role][]string{
		auth.RoleParent: compose(memberPowers, familyPowers),
		auth.RolePlayer: compose(memberPowers),
		auth.RoleCoach:  compose(memberPowers, staffPowers),
		auth.RoleAdmin:  compose(memberPowers, adminPowers),
	}
}

// compose merges permission groups into one slice.
func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}

type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// Permissions matches permission names against compiled role patterns.
// It is immutable after construction.
type Permissions struct {
	roles map[auth.Role][]compiledPermission
}

// NewPermissions compiles role patterns with ':' as the glob separator.
func NewPermissions(roles map[auth.Role][]string) (*Permissions, error) {
	compiled := make(map[auth.Role][]compiledPermission, len(roles))
	for role, patterns := range roles {
		list := make([]compiledPermission, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", role.String()).
					With("pattern", p).
					Wrap(err)
			}
			list = append(list, compiledPermission{pattern: p, glob: g})
		}
		compiled[role] = list
	}
	return &Permissions{roles: compiled}, nil
}

// DefaultPermissions compiles DefaultRolePermissions. It panics on an invalid
// pattern, which can only be a programming error.
func DefaultPermissions() *Permissions {
	p, err := NewPermissions(DefaultRolePermissions())
	if err != nil {
		panic("invalid permission pattern in DefaultRolePermissions: " + err.Error())
	}
	return p
}

// Allows reports whether role grants permission.
func (p *Permissions) Allows(role auth.Role, permission string) bool {
	for _, perm := range p.roles[role] {
		if perm.glob.Match(permission) {
			return true
		}
	}
	return false
}

// Summary is the permission view served to clients.
type Summary struct {
	Role                   auth.Role `json:"role"`
	CanManageUsers         bool      `json:"canManageUsers"`
	CanManageTeams         bool      `json:"canManageTeams"`
	CanManagePlayers       bool      `json:"canManagePlayers"`
	CanManageCoaches       bool      `json:"canManageCoaches"`
	CanViewAllPlayers      bool      `json:"canViewAllPlayers"`
	CanManageMatches       bool      `json:"canManageMatches"`
	CanManageTrainings     bool      `json:"canManageTrainings"`
	CanCreateAnnouncements bool      `json:"canCreateAnnouncements"`
	CanSendMessages        bool      `json:"canSendMessages"`
	CanViewReports         bool      `json:"canViewReports"`
	CanViewOwnChildren     bool      `json:"canViewOwnChildren"`
}

// Summarize derives the client permission view for role.
func (p *Permissions) Summarize(role auth.Role) Summary {
	return Summary{
		Role:                   role,
		CanManageUsers:         p.Allows(role, PermManageUsers),
		CanManageTeams:         p.Allows(role, PermManageTeams),
		CanManagePlayers:       p.Allows(role, PermManagePlayers),
		CanManageCoaches:       p.Allows(role, PermManageCoaches),
		CanViewAllPlayers:      p.Allows(role, PermViewAllPlayers),
		CanManageMatches:       p.Allows(role, PermManageMatches),
		CanManageTrainings:     p.Allows(role, PermManageTrainings),
		CanCreateAnnouncements: p.Allows(role, PermCreateAnnouncements),
		CanSendMessages:        p.Allows(role, PermSendMessages),
		CanViewReports:         p.Allows(role, PermViewReports),
		CanViewOwnChildren:     p.Allows(role, PermViewOwnChildren),
	}
}
