package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/gopop/pkg/model"
)

// Version is the API server version reported by /health and discovery.
const Version = "0.1.0"

type healthResponse struct {
	Status      string             `json:"status"`
	Version     string             `json:"version"`
	GoVersion   string             `json:"go_version"`
	Uptime      string             `json:"uptime"`
	Scheduler   model.ArbiterState `json:"scheduler"`
	Pending     int                `json:"pending"`
	Journal     string             `json:"journal"`
	ServerID    string             `json:"server_id,omitempty"`
	Subscribers int                `json:"subscribers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:      "healthy",
		Version:     Version,
		GoVersion:   runtime.Version(),
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		Scheduler:   s.sched.State(),
		Pending:     s.sched.Len(),
		Journal:     "disabled",
		Subscribers: s.hub.Len(),
	}
	if s.journal != nil {
		resp.Journal = "sqlite"
		s.mu.RLock()
		if s.journalFails > 0 {
			resp.Status = "degraded"
			resp.Journal = "failing"
		}
		s.mu.RUnlock()
	}
	if id, ok := s.journal.(interface{ ServerID() string }); ok {
		resp.ServerID = id.ServerID()
	}
	respondOK(w, reqID, resp)
}
