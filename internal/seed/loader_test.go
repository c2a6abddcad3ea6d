// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lfa-academy/lfa-server/pkg/errutil"
)

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, pool.ExpectationsWereMet())
		pool.Close()
	})
	return pool
}

var uniqueViolation = &pgconn.PgError{Code: pgerrcode.UniqueViolation, Message: "duplicate key"}

const (
	insertUser   = `INSERT INTO users \(id, email, password_hash, role, is_active, email_verified, first_name, last_name\)`
	insertTeam   = `INSERT INTO teams \(id, name, age_group\) VALUES \(\$1, \$2, \$3\)`
	insertPlayer = `INSERT INTO players \(id, user_id, team_id, position\)`
	insertCoach  = `INSERT INTO coaches \(id, user_id, team_id\)`
	insertFamily = `INSERT INTO family_relationships \(parent_user_id, player_id, relationship\)`
	selectUserID = `SELECT id FROM users WHERE LOWER\(email\) = \$1`
)

func fixtures() *Fixtures {
	inactive := false
	return &Fixtures{
		Users: []User{
			{ID: "u-coach", Email: "Coach@LFA.com", Password: "Coach123!", Role: "coach", FirstName: "Marco"},
			{ID: "u-kid", Email: "kid@lfa.com", PasswordHash: "$2a$10$stored", Role: "player", Active: &inactive},
			{Email: "mum@lfa.com", Password: "Parent123!", Role: "parent"},
		},
		Teams:    []Team{{ID: "t1", Name: "Under 10", AgeGroup: "U10"}},
		Players:  []Player{{ID: "p1", User: "kid@lfa.com", Team: "t1", Position: "striker"}},
		Coaches:  []Coach{{ID: "c1", User: "coach@lfa.com"}},
		Families: []Family{{Parent: "mum@lfa.com", Player: "p1"}},
	}
}

func TestLoader_Load(t *testing.T) {
	db := newMock(t)
	hasher := new(mockHasher)
	hasher.On("Hash", "Coach123!").Return("hash-coach", nil)
	hasher.On("Hash", "Parent123!").Return("hash-mum", nil)

	db.ExpectExec(insertUser).
		WithArgs("u-coach", "coach@lfa.com", "hash-coach", "coach", true, false, "Marco", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	db.ExpectExec(insertUser).
		WithArgs("u-kid", "kid@lfa.com", "$2a$10$stored", "player", false, false, "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// The parent already exists under another id.
	db.ExpectExec(insertUser).
		WithArgs(pgxmock.AnyArg(), "mum@lfa.com", "hash-mum", "parent", true, false, "", "").
		WillReturnError(uniqueViolation)
	db.ExpectQuery(selectUserID).
		WithArgs("mum@lfa.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("u-mum-existing"))
	db.ExpectExec(insertTeam).
		WithArgs("t1", "Under 10", "U10").
		WillReturnError(uniqueViolation)
	db.ExpectExec(insertPlayer).
		WithArgs("p1", "u-kid", "t1", "striker").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	db.ExpectExec(insertCoach).
		WithArgs("c1", "u-coach", nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	db.ExpectExec(insertFamily).
		WithArgs("u-mum-existing", "p1", "parent").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	loader := NewLoader(db, hasher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	report, err := loader.Load(context.Background(), fixtures())
	require.NoError(t, err)

	assert.Equal(t, Counts{Created: 2, Skipped: 1}, report.Users)
	assert.Equal(t, Counts{Skipped: 1}, report.Teams)
	assert.Equal(t, Counts{Created: 1}, report.Players)
	assert.Equal(t, Counts{Created: 1}, report.Coaches)
	assert.Equal(t, Counts{Created: 1}, report.Families)
	hasher.AssertExpectations(t)
}

func TestLoader_StopsOnDatabaseError(t *testing.T) {
	db := newMock(t)
	hasher := new(mockHasher)
	hasher.On("Hash", "Coach123!").Return("hash-coach", nil)

	db.ExpectExec(insertUser).
		WithArgs("u-coach", "coach@lfa.com", "hash-coach", "coach", true, false, "Marco", "").
		WillReturnError(errors.New("connection refused"))

	f := fixtures()
	report, err := NewLoader(db, hasher, nil).Load(context.Background(), f)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SEED_FAILED")
	errutil.AssertErrorContext(t, err, "kind", "user")
	assert.Equal(t, Counts{}, report.Users)
}

func TestLoader_HashFailure(t *testing.T) {
	db := newMock(t)
	hasher := new(mockHasher)
	hasher.On("Hash", "Coach123!").Return("", errors.New("entropy exhausted"))

	_, err := NewLoader(db, hasher, nil).Load(context.Background(), fixtures())
	errutil.AssertErrorCode(t, err, "SEED_FAILED")
	errutil.AssertErrorContext(t, err, "email", "coach@lfa.com")
}

func TestLoader_UnresolvableExistingUser(t *testing.T) {
	db := newMock(t)
	hasher := new(mockHasher)
	hasher.On("Hash", "Coach123!").Return("hash-coach", nil)

	db.ExpectExec(insertUser).
		WithArgs("u-coach", "coach@lfa.com", "hash-coach", "coach", true, false, "Marco", "").
		WillReturnError(uniqueViolation)
	db.ExpectQuery(selectUserID).
		WithArgs("coach@lfa.com").
		WillReturnError(errors.New("timeout"))

	_, err := NewLoader(db, hasher, nil).Load(context.Background(), fixtures())
	errutil.AssertErrorCode(t, err, "SEED_FAILED")
	errutil.AssertErrorContext(t, err, "operation", "resolve existing user")
}
