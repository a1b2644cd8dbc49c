package session

import (
	"encoding/json"
	"net/http"

	"tailscale.com/tsweb"
)

// AttachAdminRoutes adds the session to the /debug/ page on mux. Like every
// tsweb debug route it is reachable only from loopback or the tailnet.
func (s *Session) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KV("Session", s.id.String())
	debug.KV("Destination", s.cfg.Destination())
	debug.KVFunc("State", func() any { return s.State().String() })
	debug.KVFunc("Frames dispatched", func() any { return s.stats.Snapshot().Dispatched })
	debug.KVFunc("Rows written", func() any { return s.stats.Snapshot().Rows })
	debug.KVFunc("Frames in flight", func() any { return s.stats.Snapshot().InFlight })

	debug.HandleFunc("session", "recording session status as JSON", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s.Status()); err != nil {
			http.Error(w, "Failed to encode status", http.StatusInternalServerError)
		}
	})
}
