// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Role is an academy role. Values are ordered by privilege so that comparisons
// express the role hierarchy: admin > coach > player > parent.
type Role uint8

// Roles in ascending privilege order. RoleUnknown ranks below every real role.
const (
	RoleUnknown Role = iota
	RoleParent
	RolePlayer
	RoleCoach
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleParent: "parent",
	RolePlayer: "player",
	RoleCoach:  "coach",
	RoleAdmin:  "admin",
}

// Roles returns every assignable role, most privileged first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleCoach, RolePlayer, RoleParent}
}

// ParseRole converts a stored or wire role name into a Role.
func ParseRole(s string) (Role, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return RoleUnknown, oops.Code("ROLE_INVALID").With("role", s).Errorf("unknown role %q", s)
}

// String returns the role name, or "unknown".
func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether r is an assignable role.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Level is the numeric rank of r in the hierarchy (admin=4 ... parent=1).
func (r Role) Level() int {
	if !r.Valid() {
		return 0
	}
	return int(r)
}

// AtLeast reports whether r ranks at or above minimum.
func (r Role) AtLeast(minimum Role) bool {
	return r.Valid() && r.Level() >= minimum.Level()
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, oops.Code("ROLE_INVALID").Errorf("cannot encode role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Identity is an authenticated principal as stored in the user directory.
type Identity struct {
	ID            string
	Email         string
	PasswordHash  string
	Role          Role
	Active        bool
	EmailVerified bool
	FirstName     string
	LastName      string
	LastLogin     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DisplayName joins the first and last name.
func (i *Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// PublicIdentity is the subset of Identity safe to return to clients.
type PublicIdentity struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Role          Role       `json:"role"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	EmailVerified bool       `json:"emailVerified"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
}

// Public strips credentials and bookkeeping from the identity.
func (i *Identity) Public() PublicIdentity {
	return PublicIdentity{
		ID:            i.ID,
		Email:         i.Email,
		Role:          i.Role,
		FirstName:     i.FirstName,
		LastName:      i.LastName,
		EmailVerified: i.EmailVerified,
		LastLogin:     i.LastLogin,
	}
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IdentityDirectory looks up identities. Implementations return an error
// satisfying errors.Is(err, ErrNotFound) when no identity matches.
type IdentityDirectory interface {
	// FindByID returns the identity with the given id.
	FindByID(ctx context.Context, id string) (*Identity, error)

	// FindByEmail returns the identity whose email matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// UpdateLastLogin records a successful login time.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// PasswordStore replaces stored password hashes.
type PasswordStore interface {
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}
