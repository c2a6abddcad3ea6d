// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/lfa-academy/lfa-server/internal/access"
	"github.com/lfa-academy/lfa-server/internal/auth"
	"github.com/lfa-academy/lfa-server/internal/schema"
	"github.com/lfa-academy/lfa-server/pkg/errutil"
)

// Error categories returned in the "error" field.
const (
	categoryValidation     = "Validation error"
	categoryAuthentication = "Authentication failed"
	categoryToken          = "Invalid token"
	categoryTokenMissing   = "Authentication required"
	categoryForbidden      = "Forbidden"
	categoryRateLimited    = "Too many requests"
	categoryTooLarge       = "Payload too large"
	categoryServer         = "Server error"
)

const (
	codeBodyTooLarge = "BODY_TOO_LARGE"
	codeBodyInvalid  = "BODY_INVALID"

	msgServerError = "An unexpected error occurred"
)

// errorBody is the envelope for every failed request.
type errorBody struct {
	Success    bool     `json:"success"`
	Error      string   `json:"error"`
	Message    string   `json:"message"`
	Details    []string `json:"details,omitempty"`
	RetryAfter int      `json:"retryAfter,omitempty"`
	RequestID  string   `json:"requestId,omitempty"`
}

// classify maps an error code to its HTTP status and category.
func classify(code string) (int, string) {
	switch {
	case code == auth.CodeValidation, code == schema.CodeInvalid, code == codeBodyInvalid,
		code == "RESOURCE_KIND_INVALID":
		return http.StatusBadRequest, categoryValidation
	case code == codeBodyTooLarge:
		return http.StatusRequestEntityTooLarge, categoryTooLarge
	case code == auth.CodeInvalidCredentials, code == auth.CodeAccountDisabled:
		return http.StatusUnauthorized, categoryAuthentication
	case code == auth.CodeTokenMissing:
		return http.StatusUnauthorized, categoryTokenMissing
	case auth.IsTokenFailure(code):
		return http.StatusUnauthorized, categoryToken
	case code == access.CodeForbidden:
		return http.StatusForbidden, categoryForbidden
	case code == auth.CodeRateLimited:
		return http.StatusTooManyRequests, categoryRateLimited
	}
	return http.StatusInternalServerError, categoryServer
}

// writeError renders err as the JSON envelope. Server errors are logged and
// replaced with a generic message.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, category := classify(errutil.CodeOf(err))
	body := errorBody{
		Error:     category,
		Message:   msgServerError,
		RequestID: RequestID(r.Context()),
	}

	if status == http.StatusInternalServerError {
		errutil.LogError(a.logger.With("request_id", body.RequestID, "path", r.URL.Path),
			"request failed", err)
	} else {
		// Client-facing errors are created with their public message and no
		// wrapped cause.
		body.Message = err.Error()
		if status == http.StatusBadRequest {
			body.Details = schema.Violations(err)
		}
		if oopsErr, ok := oops.AsOops(err); ok {
			if secs, ok := oopsErr.Context()["retry_after"].(int); ok {
				body.RetryAfter = secs
			}
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(v)
}

// readBody reads at most the configured body size.
func (a *API) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, oops.Code(codeBodyTooLarge).
				With("limit", tooLarge.Limit).
				Errorf("Request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, oops.Code(codeBodyInvalid).With("cause", err.Error()).Errorf("Request body could not be read")
	}
	return data, nil
}

// decodeBody validates data against v and decodes it into dst.
func decodeBody(v *schema.Validator, data []byte, dst any) error {
	if err := v.ValidateJSON(data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return oops.Code(codeBodyInvalid).With("cause", err.Error()).Errorf("Request body is not valid JSON")
	}
	return nil
}
