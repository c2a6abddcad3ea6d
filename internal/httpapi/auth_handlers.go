// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/access"
	"github.com/lfa-academy/lfa-server/internal/auth"
	"github.com/lfa-academy/lfa-server/internal/schema"
)

const refreshCookie = "refreshToken"

type loginRequest struct {
	Email    string `json:"email" jsonschema:"minLength=1,maxLength=320"`
	Password string `json:"password" jsonschema:"minLength=1,maxLength=1024"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty" jsonschema:"maxLength=4096"`
}

type tokensBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type loginResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	User    auth.PublicIdentity `json:"user"`
	Tokens  tokensBody          `json:"tokens"`
}

type refreshResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Tokens  tokensBody `json:"tokens"`
}

type tokenInfo struct {
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	RemainingTime int64     `json:"remainingTime"`
}

type verifyResponse struct {
	Success   bool                `json:"success"`
	User      auth.PublicIdentity `json:"user"`
	TokenInfo tokenInfo           `json:"tokenInfo"`
}

type permissionsResponse struct {
	Success     bool           `json:"success"`
	Permissions access.Summary `json:"permissions"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	data, err := a.readBody(w, r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req loginRequest
	if err := decodeBody(a.loginSchema, data, &req); err != nil {
		if schema.Violations(err) != nil {
			err = oops.Code(auth.CodeValidation).
				With("violations", schema.Violations(err)).
				Errorf("Email and password are required")
		}
		a.writeError(w, r, err)
		return
	}

	key := a.clientIP(r) + ":" + auth.NormalizeEmail(req.Email)
	if !a.admit(w, r, scopeLogin, a.cfg.Login, key) {
		return
	}

	result, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.setRefreshCookie(w, result.Tokens.RefreshToken)
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Message: "Login successful",
		User:    result.Identity.Public(),
		Tokens: tokensBody{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
			ExpiresIn:    result.Tokens.ExpiresIn,
		},
	})
}

// handleLogout requires a genuine, unexpired access token but ignores its
// revocation state, so a repeated logout still succeeds.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		a.writeError(w, r, auth.ErrTokenMissing())
		return
	}
	if _, err := a.sessions.Codec().Verify(accessToken, auth.TokenAccess); err != nil {
		a.writeError(w, r, err)
		return
	}
	refreshToken := a.presentedRefreshToken(w, r)

	a.sessions.Logout(r.Context(), accessToken, refreshToken)

	a.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Logout successful"})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	data, err := a.readBody(w, r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req refreshRequest
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := decodeBody(a.refreshSchema, data, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	token := req.RefreshToken
	if token == "" {
		token = cookieValue(r, refreshCookie)
	}

	pair, err := a.sessions.Refresh(r.Context(), token)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, refreshResponse{
		Success: true,
		Message: "Token refreshed successfully",
		Tokens: tokensBody{
			AccessToken: pair.AccessToken,
			ExpiresIn:   pair.ExpiresIn,
		},
	})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())
	info := tokenInfo{RemainingTime: a.sessions.Codec().RemainingSeconds(principal.Token)}
	if principal.Claims.IssuedAt != nil {
		info.IssuedAt = principal.Claims.IssuedAt.Time
	}
	if principal.Claims.ExpiresAt != nil {
		info.ExpiresAt = principal.Claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		Success:   true,
		User:      principal.Identity.Public(),
		TokenInfo: info,
	})
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, permissionsResponse{
		Success:     true,
		Permissions: a.permissions.Summarize(identity(r).Role),
	})
}

// presentedRefreshToken takes the refresh token from a JSON body, falling
// back to the cookie. Unreadable bodies are ignored.
func (a *API) presentedRefreshToken(w http.ResponseWriter, r *http.Request) string {
	data, err := a.readBody(w, r)
	if err == nil && len(strings.TrimSpace(string(data))) > 0 {
		var req refreshRequest
		if decodeBody(a.refreshSchema, data, &req) == nil && req.RefreshToken != "" {
			return req.RefreshToken
		}
	}
	return cookieValue(r, refreshCookie)
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string) {
	ttl := a.sessions.Codec().RefreshTTL()
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/api/auth",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   a.cfg.Production,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.Production,
		SameSite: http.SameSiteStrictMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
