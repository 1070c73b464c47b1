// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/hrowan/radiolog/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
