// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package httpapi

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/auth"
)

// Rate limit scopes, used as key prefixes and metric labels.
const (
	scopeAPI     = "api"
	scopeLogin   = "login"
	scopeRefresh = "refresh"
)

const headerRequestID = "X-Request-ID"

// requestInfo is shared by the outer middleware and the router so the access
// log can report the matched route.
type requestInfo struct {
	id    string
	route string
}

type requestInfoKey struct{}

func infoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.id
	}
	return ""
}

// requestID assigns a ULID to every request unless the caller sent one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 64 {
			id = ulid.Make().String()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), requestInfoKey{}, &requestInfo{id: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// routed records the mux pattern that served the request.
func routed(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if info := infoFrom(r.Context()); info != nil {
			info.route = r.Pattern
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		if a.metrics != nil {
			a.metrics.InFlight.Inc()
			defer a.metrics.InFlight.Dec()
		}

		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		route := "unmatched"
		if info := infoFrom(r.Context()); info != nil && info.route != "" {
			route = info.route
		}
		a.metrics.RecordRequest(r.Method, route, status, elapsed)
		a.logger.InfoContext(r.Context(), "http request",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", sw.bytes,
			"duration_ms", elapsed.Milliseconds(),
			"remote", a.clientIP(r),
		)
	})
}

func (a *API) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := oops.Code("INTERNAL").
				With("panic", rec).
				With("stack", string(debug.Stack())).
				Errorf("handler panic")
			a.writeError(w, r, err)
		}()
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// rateLimit rejects requests once key(r) exhausts limit. A non-positive
// limit disables the check.
func (a *API) rateLimit(scope string, limit Limit, key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.admit(w, r, scope, limit, key(r)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// admit charges one request to key and writes the 429 response when the
// window is exhausted.
func (a *API) admit(w http.ResponseWriter, r *http.Request, scope string, limit Limit, key string) bool {
	if limit.Max <= 0 || limit.Window <= 0 {
		return true
	}
	result := a.limiter.Check(scope+":"+key, limit.Max, limit.Window)

	h := w.Header()
	h.Set("RateLimit-Limit", strconv.Itoa(limit.Max))
	h.Set("RateLimit-Remaining", strconv.Itoa(max(limit.Max-result.Count, 0)))
	h.Set("RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

	if result.Allowed {
		return true
	}
	auth.RecordRateLimitRejection(scope)
	h.Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds))
	a.writeError(w, r, auth.ErrRateLimited(result.RetryAfterSeconds))
	return false
}

// clientIP returns the caller address. X-Forwarded-For is honored only
// behind a trusted proxy.
func (a *API) clientIP(r *http.Request) string {
	if a.cfg.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Authenticate requires a valid access token and attaches the principal to
// the request context.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.sessions.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// identity returns the authenticated identity, or nil outside Authenticate.
func identity(r *http.Request) *auth.Identity {
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		return p.Identity
	}
	return nil
}
