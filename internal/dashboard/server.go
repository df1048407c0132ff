// Package dashboard serves the analytics engine over a local JSON API.
//
// Every endpoint loads the relevant slice of loan records from the store,
// runs the pure in-memory computation, and writes the result. There is no
// server-side state beyond the SQLite cache, so the UI can re-query freely.
package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hurttlocker/lendgraph/internal/store"
)

// ServerConfig holds settings for the dashboard API server.
type ServerConfig struct {
	Store store.Store
	Port  int
}

// Serve starts the dashboard API server.
func Serve(cfg ServerConfig) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("lendgraph dashboard API: http://localhost%s\n", addr)
	return http.ListenAndServe(addr, NewMux(cfg.Store))
}

// NewMux builds the API routing table. Split out from Serve for tests.
func NewMux(st store.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		handleStats(w, r, st)
	})
	mux.HandleFunc("/api/churn", func(w http.ResponseWriter, r *http.Request) {
		handleChurn(w, r, st)
	})
	mux.HandleFunc("/api/migration", func(w http.ResponseWriter, r *http.Request) {
		handleMigration(w, r, st)
	})
	mux.HandleFunc("/api/share", func(w http.ResponseWriter, r *http.Request) {
		handleShare(w, r, st)
	})
	mux.HandleFunc("/api/monopoly", func(w http.ResponseWriter, r *http.Request) {
		handleMonopoly(w, r, st)
	})
	mux.HandleFunc("/api/layout", func(w http.ResponseWriter, r *http.Request) {
		handleLayout(w, r, st)
	})
	mux.HandleFunc("/api/top", func(w http.ResponseWriter, r *http.Request) {
		handleTop(w, r, st)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// intParam parses a bounded integer query parameter, falling back to def
// when absent or out of range.
func intParam(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return def
	}
	return v
}
