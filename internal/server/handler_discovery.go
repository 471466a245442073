package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "GoPop API",
		Version:     "v1",
		Description: "GoPop interruption arbiter: priority admission and presentation of modal requests",
		Endpoints: []endpointInfo{
			{"/api/v1/state", []string{"GET"}, "Scheduler state, active request and backlog size"},
			{"/api/v1/requests", []string{"GET", "POST"}, "List (active first, then by priority) or admit requests"},
			{"/api/v1/requests/{id}", []string{"GET"}, "Single admitted request"},
			{"/api/v1/requests/{id}/resign", []string{"POST"}, "Yield the presentation slot held by the request"},
			{"/api/v1/requests/{id}/cancel", []string{"POST"}, "Flag a pending request canceled"},
			{"/api/v1/events", []string{"GET"}, "Event journal (?request_id, limit, offset)"},
			{"/api/v1/sse/events", []string{"GET"}, "Live scheduler events (Server-Sent Events)"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
