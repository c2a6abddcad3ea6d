// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LFA Academy Contributors

package httpapi

import (
	"net/http"
)

type guardResponse struct {
	Success  bool   `json:"success"`
	Allowed  bool   `json:"allowed"`
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

// handleGuard answers a check that the wrapping guard already passed. param
// names the path value echoed as the id and may be empty.
func (a *API) handleGuard(resource, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		if param != "" {
			id = r.PathValue(param)
		}
		writeJSON(w, http.StatusOK, guardResponse{
			Success:  true,
			Allowed:  true,
			Resource: resource,
			ID:       id,
		})
	}
}
