// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package httpapi_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lfa-academy/lfa-server/internal/access"
	"github.com/lfa-academy/lfa-server/internal/access/accesstest"
	"github.com/lfa-academy/lfa-server/internal/auth"
	"github.com/lfa-academy/lfa-server/internal/auth/authtest"
	"github.com/lfa-academy/lfa-server/internal/httpapi"
	"github.com/lfa-academy/lfa-server/internal/observability"
)

const password = "Academy123!"

// logBuffer is written by server goroutines while tests read it.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	server        *httptest.Server
	relationships *accesstest.Relationships
	directory     *authtest.Directory
	revocations   *auth.MemoryRevocationStore
	metrics       *observability.Metrics
	logs          *logBuffer
}

func defaultConfig() httpapi.Config {
	return httpapi.Config{
		AllowedOrigins: []string{"http://localhost:3000"},
		API:            httpapi.Limit{Max: 1000, Window: 15 * time.Minute},
		Login:          httpapi.Limit{Max: 5, Window: 15 * time.Minute},
		Refresh:        httpapi.Limit{Max: 20, Window: 15 * time.Minute},
	}
}

func member(t *testing.T, id, email string, role auth.Role) *auth.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.Identity{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
		FirstName:    "Test",
		LastName:     strings.ToUpper(role.String()),
	}
}

func newFixture(t *testing.T, cfg httpapi.Config) *fixture {
	t.Helper()

	disabled := member(t, "u-gone", "gone@lfa.com", auth.RolePlayer)
	disabled.Active = false
	directory := authtest.NewDirectory(
		member(t, "u-admin", "admin@lfa.com", auth.RoleAdmin),
		member(t, "u-coach1", "coach1@lfa.com", auth.RoleCoach),
		member(t, "u-parent", "parent@lfa.com", auth.RoleParent),
		disabled,
	)
	relationships := accesstest.NewRelationships().
		AddPlayer("p1", "u-player1", "t1").
		AddPlayer("p2", "u-player2", "t2").
		AddCoach("u-coach1", "t1").
		LinkGuardian("u-parent", "p1").
		AddMessage("m1", "u-parent", "u-coach1")

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  []byte("access-secret-for-http-tests"),
		RefreshSecret: []byte("refresh-secret-for-http-tests"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "lfa-academy",
		Audience:      "lfa-academy-users",
	})
	require.NoError(t, err)
	logs := &logBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	revocations := auth.NewMemoryRevocationStore()
	sessions, err := auth.NewSessionManager(directory, auth.NewVerifier(), codec,
		auth.NewRevocationRegistry(revocations),
		auth.WithSessionLogger(logger))
	require.NoError(t, err)
	evaluator, err := access.NewEvaluator(relationships)
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	api, err := httpapi.New(sessions, evaluator, cfg,
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(metrics),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &fixture{
		server:        srv,
		relationships: relationships,
		directory:     directory,
		revocations:   revocations,
		metrics:       metrics,
		logs:          logs,
	}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) cookie(name string) *http.Cookie {
	for _, c := range (&http.Response{Header: r.header}).Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode[T any](t *testing.T, r response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.body, &v), string(r.body))
	return v
}

type request struct {
	method  string
	path    string
	body    string
	bearer  string
	cookie  *http.Cookie
	headers map[string]string
}

func (f *fixture) do(t *testing.T, req request) response {
	t.Helper()
	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	httpReq, err := http.NewRequest(req.method, f.server.URL+req.path, body)
	require.NoError(t, err)
	if req.body != "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	if req.cookie != nil {
		httpReq.AddCookie(req.cookie)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.server.Client().Do(httpReq)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: data}
}

func (f *fixture) login(t *testing.T, email string) loginBody {
	t.Helper()
	resp := f.do(t, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   `{"email":"` + email + `","password":"` + password + `"}`,
	})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	body := decode[loginBody](t, resp)
	body.cookie = resp.cookie("refreshToken")
	return body
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type loginBody struct {
	Success bool                `json:"success"`
	User    auth.PublicIdentity `json:"user"`
	Tokens  tokens              `json:"tokens"`
	cookie  *http.Cookie
}

type errorBody struct {
	Success    bool     `json:"success"`
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	Details    []string `json:"details"`
	RetryAfter int      `json:"retryAfter"`
	RequestID  string   `json:"requestId"`
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := httpapi.New(nil, nil, defaultConfig())
	require.Error(t, err)
}

func TestLogin_IssuesTokensAndCookie(t *testing.T) {
	f := newFixture(t, defaultConfig())

	body := f.login(t, "admin@lfa.com")
	assert.True(t, body.Success)
	assert.Equal(t, "u-admin", body.User.ID)
	assert.Equal(t, auth.RoleAdmin, body.User.Role)
	assert.NotNil(t, body.User.LastLogin)
	assert.NotEmpty(t, body.Tokens.AccessToken)
	assert.NotEmpty(t, body.Tokens.RefreshToken)
	assert.Equal(t, int64(900), body.Tokens.ExpiresIn)

	require.NotNil(t, body.cookie)
	assert.Equal(t, body.Tokens.RefreshToken, body.cookie.Value)
	assert.True(t, body.cookie.HttpOnly)
	assert.False(t, body.cookie.Secure, "secure only in production")
	assert.Equal(t, http.SameSiteStrictMode, body.cookie.SameSite)
	assert.Equal(t, 7*24*60*60, body.cookie.MaxAge)
	assert.Equal(t, "/api/auth", body.cookie.Path)

	// The access log records after the response is flushed.
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("POST", "POST /api/auth/login", "200")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLogin_SecureCookieInProduction(t *testing.T) {
	cfg := defaultConfig()
	cfg.Production = true
	f := newFixture(t, cfg)

	body := f.login(t, "admin@lfa.com")
	require.NotNil(t, body.cookie)
	assert.True(t, body.cookie.Secure)
}

func TestLogin_NormalizesEmail(t *testing.T) {
	f := newFixture(t, defaultConfig())
	body := f.login(t, " Admin@Lfa.com ")
	assert.Equal(t, "admin@lfa.com", body.User.Email)
}

func TestLogin_FailuresDoNotRevealRegisteredEmails(t *testing.T) {
	f := newFixture(t, defaultConfig())
	headers := map[string]string{"X-Request-ID": "req-fixed"}

	wrongPassword := f.do(t, request{
		method: http.MethodPost, path: "/api/auth/login", headers: headers,
		body: `{"email":"admin@lfa.com","password":"nope"}`,
	})
	unknownEmail := f.do(t, request{
		method: http.MethodPost, path: "/api/auth/login", headers: headers,
		body: `{"email":"nobody@lfa.com","password":"nope"}`,
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.status)
	assert.Equal(t, wrongPassword.status, unknownEmail.status)
	assert.Equal(t, string(wrongPassword.body), string(unknownEmail.body))

	body := decode[errorBody](t, wrongPassword)
	assert.False(t, body.Success)
	assert.Equal(t, "Authentication failed", body.Error)
	assert.Equal(t, auth.MsgInvalidCredentials, body.Message)
}

func TestLogin_DisabledAccount(t *testing.T) {
	f := newFixture(t, defaultConfig())
	resp := f.do(t, request{
		method: http.MethodPost, path: "/api/auth/login",
		body: `{"email":"gone@lfa.com","password":"` + password + `"}`,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, auth.MsgAccountDisabled, decode[errorBody](t, resp).Message)
}

func TestLogin_Validation(t *testing.T) {
	f := newFixture(t, defaultConfig())

	tests := []struct {
		name string
		body string
	}{
		{"missing password", `{"email":"admin@lfa.com"}`},
		{"empty email", `{"email":"","password":"x"}`},
		{"whitespace email", `{"email":"   ","password":"x"}`},
		{"wrong type", `{"email":1,"password":"x"}`},
		{"malformed", `{"email":`},
		{"no body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: tt.body})
			assert.Equal(t, http.StatusBadRequest, resp.status)
			body := decode[errorBody](t, resp)
			assert.Equal(t, "Validation error", body.Error)
			assert.Equal(t, "Email and password are required", body.Message)
		})
	}
}

func TestLogin_BodyTooLarge(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxBodyBytes = 64
	f := newFixture(t, cfg)

	resp := f.do(t, request{
		method: http.MethodPost, path: "/api/auth/login",
		body: `{"email":"admin@lfa.com","password":"` + strings.Repeat("x", 128) + `"}`,
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.status)
}

func TestLogin_RateLimitedPerEmail(t *testing.T) {
	f := newFixture(t, defaultConfig())
	attempt := func(email string) response {
		return f.do(t, request{
			method: http.MethodPost, path: "/api/auth/login",
			body: `{"email":"` + email + `","password":"wrong"}`,
		})
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusUnauthorized, attempt("coach1@lfa.com").status)
	}
	limited := attempt("COACH1@lfa.com")
	assert.Equal(t, http.StatusTooManyRequests, limited.status)
	assert.NotEmpty(t, limited.header.Get("Retry-After"))
	body := decode[errorBody](t, limited)
	assert.Equal(t, "Too many requests", body.Error)
	assert.Positive(t, body.RetryAfter)

	assert.Equal(t, http.StatusUnauthorized, attempt("parent@lfa.com").status,
		"other emails keep their own budget")
}

func TestAPI_GlobalRateLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.API = httpapi.Limit{Max: 2, Window: time.Minute}
	f := newFixture(t, cfg)

	for i := 0; i < 2; i++ {
		resp := f.do(t, request{method: http.MethodGet, path: "/api/auth/verify-token"})
		require.Equal(t, http.StatusUnauthorized, resp.status)
		assert.Equal(t, "2", resp.header.Get("RateLimit-Limit"))
	}
	resp := f.do(t, request{method: http.MethodGet, path: "/api/auth/verify-token"})
	assert.Equal(t, http.StatusTooManyRequests, resp.status)
	assert.Equal(t, "0", resp.header.Get("RateLimit-Remaining"))
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	f := newFixture(t, defaultConfig())
	login := f.login(t, "coach1@lfa.com")

	first := f.do(t, request{
		method: http.MethodPost, path: "/api/auth/refresh-token",
		body: `{"refreshToken":"` + login.Tokens.RefreshToken + `"}`,
	})
	require.Equal(t, http.StatusOK, first.status, string(first.body))
	refreshed := decode[struct {
		Success bool   `json:"success"`
		Tokens  tokens `json:"tokens"`
	}](t, first)
	assert.True(t, refreshed.Success)
	assert.NotEmpty(t, refreshed.Tokens.AccessToken)
	assert.Empty(t, refreshed.Tokens.RefreshToken, "rotated refresh token travels only in the cookie")
	assert.Equal(t, int64(900), refreshed.Tokens.ExpiresIn)
	rotated := first.cookie("refreshToken")
	require.NotNil(t, rotated)
	assert.NotEqual(t, login.Tokens.RefreshToken, rotated.Value)

	reuse := f.do(t, request{
		method: http.MethodPost, path: "/api/auth/refresh-token",
		body: `{"refreshToken":"` + login.Tokens.RefreshToken + `"}`,
	})
	assert.Equal(t, http.StatusUnauthorized, reuse.status)
	assert.Equal(t, auth.MsgTokenRevoked, decode[errorBody](t, reuse).Message)

	viaCookie := f.do(t, request{method: http.MethodPost, path: "/api/auth/refresh-token", cookie: rotated})
	assert.Equal(t, http.StatusOK, viaCookie.status, string(viaCookie.body))
}

func TestRefresh_Failures(t *testing.T) {
	f := newFixture(t, defaultConfig())
	login := f.login(t, "admin@lfa.com")

	missing := f.do(t, request{method: http.MethodPost, path: "/api/auth/refresh-token"})
	assert.Equal(t, http.StatusUnauthorized, missing.status)
	assert.Equal(t, auth.MsgRefreshTokenMissing, decode[errorBody](t, missing).Message)

	accessAsRefresh := f.do(t, request{
		method: http.MethodPost, path: "/api/auth/refresh-token",
		body: `{"refreshToken":"` + login.Tokens.AccessToken + `"}`,
	})
	assert.Equal(t, http.StatusUnauthorized, accessAsRefresh.status)
	assert.Equal(t, auth.MsgRefreshInvalid, decode[errorBody](t, accessAsRefresh).Message)

	f.directory.SetActive("u-admin", false)
	inactive := f.do(t, request{
		method: http.MethodPost, path: "/api/auth/refresh-token",
		body: `{"refreshToken":"` + login.Tokens.RefreshToken + `"}`,
	})
	assert.Equal(t, http.StatusUnauthorized, inactive.status)
	assert.Equal(t, auth.MsgUserInvalid, decode[errorBody](t, inactive).Message)
}

func TestLogout_RevokesAndIsIdempotent(t *testing.T) {
	f := newFixture(t, defaultConfig())
	login := f.login(t, "parent@lfa.com")

	for i := 0; i < 2; i++ {
		resp := f.do(t, request{
			method: http.MethodPost, path: "/api/auth/logout",
			bearer: login.Tokens.AccessToken, cookie: login.cookie,
		})
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))
		assert.JSONEq(t, `{"success":true,"message":"Logout successful"}`, string(resp.body))
		cleared := resp.cookie("refreshToken")
		require.NotNil(t, cleared)
		assert.Negative(t, cleared.MaxAge)
	}

	verify := f.do(t, request{method: http.MethodGet, path: "/api/auth/verify-token", bearer: login.Tokens.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, verify.status)
	assert.Equal(t, auth.MsgTokenRevoked, decode[errorBody](t, verify).Message)

	refresh := f.do(t, request{method: http.MethodPost, path: "/api/auth/refresh-token", cookie: login.cookie})
	assert.Equal(t, http.StatusUnauthorized, refresh.status)
}

func TestLogout_RequiresAccessToken(t *testing.T) {
	f := newFixture(t, defaultConfig())

	resp := f.do(t, request{method: http.MethodPost, path: "/api/auth/logout"})
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, auth.MsgTokenMissing, decode[errorBody](t, resp).Message)

	for i := 0; i < 20; i++ {
		resp := f.do(t, request{
			method: http.MethodPost, path: "/api/auth/logout",
			bearer: fmt.Sprintf("garbage-%d", i),
			body:   fmt.Sprintf(`{"refreshToken":"junk-%d"}`, i),
		})
		require.Equal(t, http.StatusUnauthorized, resp.status, string(resp.body))
	}
	assert.Zero(t, f.revocations.Len())
}

func TestLogout_DropsForgedRefreshToken(t *testing.T) {
	f := newFixture(t, defaultConfig())
	login := f.login(t, "coach1@lfa.com")

	resp := f.do(t, request{
		method: http.MethodPost, path: "/api/auth/logout",
		bearer: login.Tokens.AccessToken,
		body:   `{"refreshToken":"junk"}`,
	})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	assert.Equal(t, 1, f.revocations.Len())
}

func TestVerifyToken(t *testing.T) {
	f := newFixture(t, defaultConfig())
	login := f.login(t, "coach1@lfa.com")

	resp := f.do(t, request{method: http.MethodGet, path: "/api/auth/verify-token", bearer: login.Tokens.AccessToken})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	body := decode[struct {
		Success   bool                `json:"success"`
		User      auth.PublicIdentity `json:"user"`
		TokenInfo struct {
			IssuedAt      time.Time `json:"issuedAt"`
			ExpiresAt     time.Time `json:"expiresAt"`
			RemainingTime int64     `json:"remainingTime"`
		} `json:"tokenInfo"`
	}](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, "u-coach1", body.User.ID)
	assert.Equal(t, 15*time.Minute, body.TokenInfo.ExpiresAt.Sub(body.TokenInfo.IssuedAt))
	assert.Greater(t, body.TokenInfo.RemainingTime, int64(0))
	assert.LessOrEqual(t, body.TokenInfo.RemainingTime, int64(900))
}

func TestVerifyToken_Failures(t *testing.T) {
	f := newFixture(t, defaultConfig())
	login := f.login(t, "coach1@lfa.com")

	tests := []struct {
		name     string
		header   string
		category string
		message  string
	}{
		{"no header", "", "Authentication required", auth.MsgTokenMissing},
		{"wrong scheme", "Basic abc", "Authentication required", auth.MsgTokenMissing},
		{"garbage", "Bearer not-a-token", "Invalid token", auth.MsgTokenFormat},
		{"refresh as access", "Bearer " + login.Tokens.RefreshToken, "Invalid token", auth.MsgTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			resp := f.do(t, request{method: http.MethodGet, path: "/api/auth/verify-token", headers: headers})
			assert.Equal(t, http.StatusUnauthorized, resp.status)
			body := decode[errorBody](t, resp)
			assert.Equal(t, tt.category, body.Error)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestPermissions(t *testing.T) {
	f := newFixture(t, defaultConfig())

	coach := f.login(t, "coach1@lfa.com")
	resp := f.do(t, request{method: http.MethodGet, path: "/api/auth/me/permissions", bearer: coach.Tokens.AccessToken})
	require.Equal(t, http.StatusOK, resp.status)
	body := decode[struct {
		Success     bool           `json:"success"`
		Permissions access.Summary `json:"permissions"`
	}](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, auth.RoleCoach, body.Permissions.Role)
	assert.True(t, body.Permissions.CanManageTrainings)
	assert.True(t, body.Permissions.CanViewAllPlayers)
	assert.False(t, body.Permissions.CanManageUsers)

	admin := f.login(t, "admin@lfa.com")
	resp = f.do(t, request{method: http.MethodGet, path: "/api/auth/me/permissions", bearer: admin.Tokens.AccessToken})
	assert.Contains(t, string(resp.body), `"canManageUsers":true`)
}

func TestGuards(t *testing.T) {
	f := newFixture(t, defaultConfig())
	parent := f.login(t, "parent@lfa.com").Tokens.AccessToken
	coach := f.login(t, "coach1@lfa.com").Tokens.AccessToken
	admin := f.login(t, "admin@lfa.com").Tokens.AccessToken

	tests := []struct {
		name   string
		token  string
		path   string
		status int
	}{
		{"parent own child", parent, "/api/access/players/p1", http.StatusOK},
		{"parent other child", parent, "/api/access/players/p2", http.StatusForbidden},
		{"parent child's team", parent, "/api/access/teams/t1", http.StatusOK},
		{"coach own team player", coach, "/api/access/players/p1", http.StatusOK},
		{"coach other team player", coach, "/api/access/players/p2", http.StatusForbidden},
		{"coach missing player", coach, "/api/access/players/p404", http.StatusForbidden},
		{"message recipient", coach, "/api/access/messages/m1", http.StatusOK},
		{"admin anything", admin, "/api/access/teams/t2", http.StatusOK},
		{"anonymous", "", "/api/access/players/p1", http.StatusUnauthorized},
		{"own user record", parent, "/api/access/users/u-parent", http.StatusOK},
		{"another user record", parent, "/api/access/users/u-coach1", http.StatusForbidden},
		{"admin any user record", admin, "/api/access/users/u-parent", http.StatusOK},
		{"coach staff area", coach, "/api/access/staff", http.StatusOK},
		{"admin staff area", admin, "/api/access/staff", http.StatusOK},
		{"parent staff area", parent, "/api/access/staff", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, request{method: http.MethodGet, path: tt.path, bearer: tt.token})
			assert.Equal(t, tt.status, resp.status, string(resp.body))
		})
	}

	denied := f.do(t, request{method: http.MethodGet, path: "/api/access/players/p2", bearer: parent})
	body := decode[errorBody](t, denied)
	assert.Equal(t, "Forbidden", body.Error)
	assert.Equal(t, "Access denied to this player", body.Message)

	allowed := f.do(t, request{method: http.MethodGet, path: "/api/access/players/p1", bearer: parent})
	assert.JSONEq(t, `{"success":true,"allowed":true,"resource":"player","id":"p1"}`, string(allowed.body))
}

func TestGuards_StoreFailureIsServerError(t *testing.T) {
	f := newFixture(t, defaultConfig())
	parent := f.login(t, "parent@lfa.com").Tokens.AccessToken
	f.relationships.Fail = errors.New("connection reset by peer")

	resp := f.do(t, request{method: http.MethodGet, path: "/api/access/players/p1", bearer: parent})
	assert.Equal(t, http.StatusInternalServerError, resp.status)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "Server error", body.Error)
	assert.Equal(t, "An unexpected error occurred", body.Message)
	assert.NotContains(t, string(resp.body), "connection reset")
	assert.Contains(t, f.logs.String(), "connection reset")
}

func TestChain_HeadersAndRequestID(t *testing.T) {
	f := newFixture(t, defaultConfig())

	resp := f.do(t, request{method: http.MethodGet, path: "/api/auth/verify-token"})
	assert.Equal(t, "nosniff", resp.header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.header.Get("X-Frame-Options"))
	assert.Equal(t, "no-store", resp.header.Get("Cache-Control"))
	id := resp.header.Get("X-Request-ID")
	assert.Len(t, id, 26)
	assert.Equal(t, id, decode[errorBody](t, resp).RequestID)

	echoed := f.do(t, request{method: http.MethodGet, path: "/api/auth/verify-token",
		headers: map[string]string{"X-Request-ID": "client-123"}})
	assert.Equal(t, "client-123", echoed.header.Get("X-Request-ID"))
	assert.Eventually(t, func() bool {
		return strings.Contains(f.logs.String(), `"request_id":"client-123"`)
	}, time.Second, 10*time.Millisecond)
}

func TestChain_CORSPreflight(t *testing.T) {
	f := newFixture(t, defaultConfig())

	resp := f.do(t, request{method: http.MethodOptions, path: "/api/auth/login", headers: map[string]string{
		"Origin":                         "http://localhost:3000",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "content-type",
	}})
	assert.Equal(t, "http://localhost:3000", resp.header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.header.Get("Access-Control-Allow-Credentials"))

	foreign := f.do(t, request{method: http.MethodOptions, path: "/api/auth/login", headers: map[string]string{
		"Origin":                        "http://evil.example",
		"Access-Control-Request-Method": "POST",
	}})
	assert.Empty(t, foreign.header.Get("Access-Control-Allow-Origin"))
}

func TestChain_UnknownRoute(t *testing.T) {
	f := newFixture(t, defaultConfig())
	resp := f.do(t, request{method: http.MethodGet, path: "/api/nowhere"})
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("GET", "unmatched", "404")) == 1
	}, time.Second, 10*time.Millisecond)
}
