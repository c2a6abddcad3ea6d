// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package seed loads academy fixtures (users, teams, players, coaches and
// family links) from YAML into the relational store.
package seed

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/lfa-academy/lfa-server/internal/auth"
	"github.com/lfa-academy/lfa-server/internal/schema"
)

// CodeInvalid is returned for fixtures that fail schema or reference checks.
const CodeInvalid = "SEED_INVALID"

// SchemaID identifies the generated fixtures schema.
const SchemaID = "https://lfa-academy.dev/schemas/seeds.schema.json"

// Fixtures is the document stored in a seed file.
type Fixtures struct {
	Users    []User   `yaml:"users" json:"users" jsonschema:"minItems=1"`
	Teams    []Team   `yaml:"teams,omitempty" json:"teams,omitempty"`
	Players  []Player `yaml:"players,omitempty" json:"players,omitempty"`
	Coaches  []Coach  `yaml:"coaches,omitempty" json:"coaches,omitempty"`
	Families []Family `yaml:"families,omitempty" json:"families,omitempty"`
}

// User is an account. Exactly one of Password and PasswordHash is set.
type User struct {
	ID            string `yaml:"id,omitempty" json:"id,omitempty" jsonschema:"minLength=1,maxLength=64"`
	Email         string `yaml:"email" json:"email" jsonschema:"format=email"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"minLength=8"`
	PasswordHash  string `yaml:"passwordHash,omitempty" json:"passwordHash,omitempty" jsonschema:"minLength=1"`
	Role          string `yaml:"role" json:"role" jsonschema:"enum=admin,enum=coach,enum=player,enum=parent"`
	FirstName     string `yaml:"firstName,omitempty" json:"firstName,omitempty"`
	LastName      string `yaml:"lastName,omitempty" json:"lastName,omitempty"`
	Active        *bool  `yaml:"active,omitempty" json:"active,omitempty"`
	EmailVerified bool   `yaml:"emailVerified,omitempty" json:"emailVerified,omitempty"`
}

// Team is a squad players and coaches belong to.
type Team struct {
	ID       string `yaml:"id" json:"id" jsonschema:"minLength=1,maxLength=64"`
	Name     string `yaml:"name" json:"name" jsonschema:"minLength=1"`
	AgeGroup string `yaml:"ageGroup,omitempty" json:"ageGroup,omitempty"`
}

// Player links a player account to a team. User is the account email.
type Player struct {
	ID       string `yaml:"id" json:"id" jsonschema:"minLength=1,maxLength=64"`
	User     string `yaml:"user" json:"user" jsonschema:"format=email"`
	Team     string `yaml:"team,omitempty" json:"team,omitempty"`
	Position string `yaml:"position,omitempty" json:"position,omitempty"`
}

// Coach assigns a coach account to a team.
type Coach struct {
	ID   string `yaml:"id,omitempty" json:"id,omitempty" jsonschema:"minLength=1,maxLength=64"`
	User string `yaml:"user" json:"user" jsonschema:"format=email"`
	Team string `yaml:"team,omitempty" json:"team,omitempty"`
}

// Family links a parent account to a player profile.
type Family struct {
	Parent       string `yaml:"parent" json:"parent" jsonschema:"format=email"`
	Player       string `yaml:"player" json:"player" jsonschema:"minLength=1"`
	Relationship string `yaml:"relationship,omitempty" json:"relationship,omitempty" jsonschema:"enum=parent,enum=guardian,enum=mother,enum=father"`
}

var validator = schema.New(&Fixtures{},
	schema.WithID(SchemaID),
	schema.WithTitle("LFA seed fixtures", "Users, teams and relationships loaded by lfa seed"),
	schema.Strict(),
)

// Schema returns the JSON Schema seed files are validated against.
func Schema() ([]byte, error) {
	return validator.Generate()
}

// Parse validates data against the fixtures schema, decodes it, and checks
// that every reference names a declared record of the right role.
func Parse(data []byte) (*Fixtures, error) {
	if err := validator.ValidateYAML(data); err != nil {
		return nil, oops.Code(CodeInvalid).
			With("violations", schema.Violations(err)).
			Errorf("seed file does not match schema: %s", err.Error())
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code(CodeInvalid).Wrapf(err, "decode seed file")
	}
	if problems := f.check(); len(problems) > 0 {
		return nil, oops.Code(CodeInvalid).
			With("violations", problems).
			Errorf("seed file has %d invalid reference(s): %s", len(problems), strings.Join(problems, "; "))
	}
	return &f, nil
}

// check verifies uniqueness and cross references.
func (f *Fixtures) check() []string {
	var problems []string
	roles := make(map[string]auth.Role, len(f.Users))
	ids := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		email := auth.NormalizeEmail(u.Email)
		if _, dup := roles[email]; dup {
			problems = append(problems, fmt.Sprintf("users[%d]: duplicate email %s", i, email))
		}
		if u.ID != "" {
			if ids[u.ID] {
				problems = append(problems, fmt.Sprintf("users[%d]: duplicate id %s", i, u.ID))
			}
			ids[u.ID] = true
		}
		if (u.Password == "") == (u.PasswordHash == "") {
			problems = append(problems, fmt.Sprintf("users[%d]: exactly one of password and passwordHash is required", i))
		}
		role, err := auth.ParseRole(u.Role)
		if err != nil {
			problems = append(problems, fmt.Sprintf("users[%d]: unknown role %q", i, u.Role))
		}
		roles[email] = role
	}

	teams := make(map[string]bool, len(f.Teams))
	for i, t := range f.Teams {
		if teams[t.ID] {
			problems = append(problems, fmt.Sprintf("teams[%d]: duplicate id %s", i, t.ID))
		}
		teams[t.ID] = true
	}

	requireUser := func(where, email string, want auth.Role) {
		role, ok := roles[auth.NormalizeEmail(email)]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s: unknown user %s", where, email))
		case role != want:
			problems = append(problems, fmt.Sprintf("%s: user %s is a %s, not a %s", where, email, role, want))
		}
	}
	requireTeam := func(where, id string) {
		if id != "" && !teams[id] {
			problems = append(problems, fmt.Sprintf("%s: unknown team %s", where, id))
		}
	}

	players := make(map[string]bool, len(f.Players))
	for i, p := range f.Players {
		where := fmt.Sprintf("players[%d]", i)
		if players[p.ID] {
			problems = append(problems, fmt.Sprintf("%s: duplicate id %s", where, p.ID))
		}
		players[p.ID] = true
		requireUser(where, p.User, auth.RolePlayer)
		requireTeam(where, p.Team)
	}
	for i, c := range f.Coaches {
		where := fmt.Sprintf("coaches[%d]", i)
		requireUser(where, c.User, auth.RoleCoach)
		requireTeam(where, c.Team)
	}
	for i, fam := range f.Families {
		where := fmt.Sprintf("families[%d]", i)
		requireUser(where, fam.Parent, auth.RoleParent)
		if !players[fam.Player] {
			problems = append(problems, fmt.Sprintf("%s: unknown player %s", where, fam.Player))
		}
	}
	return problems
}
