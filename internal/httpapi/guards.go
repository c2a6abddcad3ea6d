// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/lfa-academy/lfa-server/internal/access"
	"github.com/lfa-academy/lfa-server/internal/auth"
)

// Authorize runs the relationship check for the resource named by the path
// parameter param. It must be wrapped by Authenticate.
func (a *API) Authorize(kind access.ResourceKind, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := a.evaluator.Authorize(r.Context(), identity(r), kind, r.PathValue(param)); err != nil {
				a.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles admits only the listed roles. With adminOverride set an admin
// is admitted as well.
func (a *API) RequireRoles(adminOverride bool, roles ...auth.Role) func(http.Handler) http.Handler {
	check := access.RequireRoles
	if adminOverride {
		check = access.RequireRolesOrAdmin
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(identity(r), roles...); err != nil {
				a.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinimumRole admits roles ranked at or above minimum.
func (a *API) RequireMinimumRole(minimum auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := access.RequireMinimumRole(identity(r), minimum); err != nil {
				a.writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnership admits admins and the identity whose id is named by field.
// The owner id is looked up in the JSON body, then the path, then the query.
func (a *API) RequireOwnership(field string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := identity(r)
			if caller == nil {
				a.writeError(w, r, auth.ErrTokenMissing())
				return
			}
			ownerID := a.ownerFromBody(r, field)
			if ownerID == "" {
				ownerID = r.PathValue(field)
			}
			if ownerID == "" {
				ownerID = r.URL.Query().Get(field)
			}
			if !access.CheckOwnership(caller, ownerID).Allowed {
				a.writeError(w, r, access.ErrNotOwner(ownerID))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ownerFromBody reads field from a JSON object body and restores the body
// for the next handler.
func (a *API) ownerFromBody(r *http.Request, field string) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, a.cfg.MaxBodyBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body map[string]any
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	id, _ := body[field].(string)
	return id
}
