package app

import (
	"encoding/json"
	"net/http"

	"github.com/wifisense/csi-radar/internal/doppler"
	"github.com/wifisense/csi-radar/internal/telemetry"
)

// newStatusServer exposes read-only JSON views of the device table and the
// latest analysis results. Both handlers serve snapshots, so a slow client
// never holds up ingestion.
func newStatusServer(addr string, store *telemetry.Store, results *doppler.ResultStore) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/devices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, store.Devices())
	})
	mux.HandleFunc("GET /api/analysis", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, results.Results())
	})

	return &http.Server{Addr: addr, Handler: mux}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
