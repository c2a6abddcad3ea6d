// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

// Package authtest provides in-memory auth collaborators for tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/auth"
)

// Directory is an in-memory auth.IdentityDirectory.
type Directory struct {
	mu         sync.RWMutex
	identities map[string]*auth.Identity
}

// NewDirectory returns a directory seeded with identities.
func NewDirectory(identities ...*auth.Identity) *Directory {
	d := &Directory{identities: make(map[string]*auth.Identity)}
	for _, id := range identities {
		d.Put(id)
	}
	return d
}

// Put inserts or replaces an identity.
func (d *Directory) Put(identity *auth.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *identity
	d.identities[identity.ID] = &cp
}

// SetActive toggles an identity's active flag.
func (d *Directory) SetActive(id string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if identity, ok := d.identities[id]; ok {
		identity.Active = active
	}
}

// FindByID implements auth.IdentityDirectory.
func (d *Directory) FindByID(_ context.Context, id string) (*auth.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	identity, ok := d.identities[id]
	if !ok {
		return nil, oops.Code("IDENTITY_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	cp := *identity
	return &cp, nil
}

// FindByEmail implements auth.IdentityDirectory.
func (d *Directory) FindByEmail(_ context.Context, email string) (*auth.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	email = auth.NormalizeEmail(email)
	for _, identity := range d.identities {
		if auth.NormalizeEmail(identity.Email) == email {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, oops.Code("IDENTITY_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
}

// UpdateLastLogin implements auth.IdentityDirectory.
func (d *Directory) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	identity, ok := d.identities[id]
	if !ok {
		return oops.Code("IDENTITY_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	identity.LastLogin = &at
	return nil
}

// UpdatePasswordHash implements auth.PasswordStore.
func (d *Directory) UpdatePasswordHash(_ context.Context, id, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	identity, ok := d.identities[id]
	if !ok {
		return oops.Code("IDENTITY_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	identity.PasswordHash = hash
	return nil
}
