package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apwatch/apwatch/telemetry"
)

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime_seconds"`
	Cycles int64  `json:"cycles"`
	APs    int    `json:"aps_tracked"`
}

// Server exposes metrics, health and the rebaseline control endpoint.
type Server struct {
	engine    *Engine
	startTime time.Time
}

// NewServer creates the control server for an engine.
func NewServer(engine *Engine) *Server {
	return &Server{engine: engine, startTime: time.Now()}
}

// Handler builds the HTTP mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if telemetry.PrometheusRegistry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(
			telemetry.PrometheusRegistry,
			promhttp.HandlerOpts{},
		))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/-/healthy", s.handleOK)
	mux.HandleFunc("/-/ready", s.handleOK)
	mux.HandleFunc("/-/rebaseline", s.handleRebaseline)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status: "healthy",
		Uptime: int64(time.Since(s.startTime).Seconds()),
		Cycles: s.engine.CycleCount(),
		APs:    s.engine.deps.Store.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) handleOK(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleRebaseline accepts POST /-/rebaseline?bssid=AA:BB:CC:DD:EE:FF
// and resets that AP's trusted baseline to its latest observation.
func (s *Server) handleRebaseline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bssid := r.URL.Query().Get("bssid")
	if bssid == "" {
		http.Error(w, "bssid query parameter is required", http.StatusBadRequest)
		return
	}

	if err := s.engine.Rebaseline(r.Context(), bssid); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "rebaselined",
		"bssid":  bssid,
	})
}
