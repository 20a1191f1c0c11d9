// Package poolhttp exposes a running pool over HTTP for operators —
// a health check and a JSON stats dump, mountable on any chi router.
package poolhttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vistone/netconnpool/pool"
)

// Mount registers /healthz and /stats under r, rooted at prefix (e.g. "/pool").
func Mount(r chi.Router, prefix string, p *pool.Pool) {
	r.Route(prefix, func(r chi.Router) {
		r.Get("/healthz", healthzHandler(p))
		r.Get("/stats", statsHandler(p))
	})
}

func healthzHandler(p *pool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := p.Stats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "ok",
			"current_total": snap.CurrentTotal,
			"current_idle":  snap.CurrentIdle,
		})
	}
}

func statsHandler(p *pool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(p.Stats())
	}
}
