// Package audit exposes the engine's audit trail over HTTP.
package audit

import (
	"encoding/json"
	"net/http"
	"time"

	coreaudit "github.com/lmoreno87/advmatch/core/audit"
)

// NewLogHandler returns an HTTP handler exposing audit records via
// GET /api/audit/logs. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewLogHandler(store coreaudit.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := coreaudit.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.RequestID = r.URL.Query().Get("request_id")
		switch r.URL.Query().Get("kind") {
		case "tiering":
			q.Kind = coreaudit.KindTiering
		case "evaluation":
			q.Kind = coreaudit.KindEvaluation
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
