// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/auth"
	"github.com/lfa-academy/lfa-server/internal/store"
)

// Counts tallies one record kind.
type Counts struct {
	Created int
	Skipped int
}

// Report summarizes a Load.
type Report struct {
	Users    Counts
	Teams    Counts
	Players  Counts
	Coaches  Counts
	Families Counts
}

// Loader writes fixtures. Records that already exist are skipped, so loading
// the same file twice is harmless.
type Loader struct {
	db     store.Querier
	hasher auth.PasswordHasher
	logger *slog.Logger
}

// NewLoader creates a Loader. hasher hashes plaintext fixture passwords.
func NewLoader(db store.Querier, hasher auth.PasswordHasher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, hasher: hasher, logger: logger}
}

// Load inserts f in dependency order: users, teams, players, coaches, then
// family links.
func (l *Loader) Load(ctx context.Context, f *Fixtures) (*Report, error) {
	report := &Report{}
	userIDs := make(map[string]string, len(f.Users))

	for _, u := range f.Users {
		id, created, err := l.loadUser(ctx, u)
		if err != nil {
			return report, err
		}
		userIDs[auth.NormalizeEmail(u.Email)] = id
		tally(&report.Users, created)
	}

	for _, t := range f.Teams {
		created, err := l.insert(ctx, "team", t.ID,
			`INSERT INTO teams (id, name, age_group) VALUES ($1, $2, $3)`,
			t.ID, t.Name, t.AgeGroup)
		if err != nil {
			return report, err
		}
		tally(&report.Teams, created)
	}

	for _, p := range f.Players {
		created, err := l.insert(ctx, "player", p.ID,
			`INSERT INTO players (id, user_id, team_id, position) VALUES ($1, $2, $3, $4)`,
			p.ID, userIDs[auth.NormalizeEmail(p.User)], nullable(p.Team), p.Position)
		if err != nil {
			return report, err
		}
		tally(&report.Players, created)
	}

	for _, c := range f.Coaches {
		id := c.ID
		if id == "" {
			id = ulid.Make().String()
		}
		created, err := l.insert(ctx, "coach", id,
			`INSERT INTO coaches (id, user_id, team_id) VALUES ($1, $2, $3)`,
			id, userIDs[auth.NormalizeEmail(c.User)], nullable(c.Team))
		if err != nil {
			return report, err
		}
		tally(&report.Coaches, created)
	}

	for _, fam := range f.Families {
		relationship := fam.Relationship
		if relationship == "" {
			relationship = "parent"
		}
		parentID := userIDs[auth.NormalizeEmail(fam.Parent)]
		created, err := l.insert(ctx, "family", parentID+"/"+fam.Player,
			`INSERT INTO family_relationships (parent_user_id, player_id, relationship) VALUES ($1, $2, $3)`,
			parentID, fam.Player, relationship)
		if err != nil {
			return report, err
		}
		tally(&report.Families, created)
	}

	return report, nil
}

// loadUser inserts u, or resolves the id of the existing account with the
// same email.
func (l *Loader) loadUser(ctx context.Context, u User) (string, bool, error) {
	email := auth.NormalizeEmail(u.Email)
	hash := u.PasswordHash
	if hash == "" {
		var err error
		if hash, err = l.hasher.Hash(u.Password); err != nil {
			return "", false, oops.Code("SEED_FAILED").With("email", email).Wrap(err)
		}
	}
	id := u.ID
	if id == "" {
		id = ulid.Make().String()
	}
	active := u.Active == nil || *u.Active

	created, err := l.insert(ctx, "user", email,
		`INSERT INTO users (id, email, password_hash, role, is_active, email_verified, first_name, last_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, email, hash, u.Role, active, u.EmailVerified, u.FirstName, u.LastName)
	if err != nil || created {
		return id, created, err
	}

	var existing string
	if err := l.db.QueryRow(ctx, `SELECT id FROM users WHERE LOWER(email) = $1`, email).Scan(&existing); err != nil {
		return "", false, oops.Code("SEED_FAILED").
			With("email", email).
			With("operation", "resolve existing user").
			Wrap(err)
	}
	return existing, false, nil
}

// insert runs one INSERT, reporting false when a unique constraint shows the
// record already exists.
func (l *Loader) insert(ctx context.Context, kind, key, sql string, args ...any) (bool, error) {
	if _, err := l.db.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			l.logger.Debug("seed record exists, skipping", "kind", kind, "key", key)
			return false, nil
		}
		return false, oops.Code("SEED_FAILED").
			With("kind", kind).
			With("key", key).
			Wrap(err)
	}
	l.logger.Info("seeded record", "kind", kind, "key", key)
	return true, nil
}

func tally(c *Counts, created bool) {
	if created {
		c.Created++
	} else {
		c.Skipped++
	}
}

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
