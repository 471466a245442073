package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/gopop/pkg/model"
)

type createRequestBody struct {
	Description string            `json:"description"`
	Priority    *int              `json:"priority"`
	ShowIf      string            `json:"show_if"`
	Labels      map[string]string `json:"labels"`
}

// handleListRequests returns the active request followed by the backlog.
// GET /api/v1/requests/
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	views := []*model.RequestView{}
	for _, req := range s.sched.AllTasks() {
		if rr, ok := req.(*RemoteRequest); ok {
			views = append(views, rr.View())
		}
	}
	respondList(w, reqID, views, &model.Pagination{
		Total:  len(views),
		Limit:  len(views),
		Offset: 0,
	})
}

// handleCreateRequest admits a new request. The first request into an empty
// scheduler is shown before the response is written.
// POST /api/v1/requests/
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid JSON: "+err.Error()))
		return
	}

	var details []model.FieldError
	if strings.TrimSpace(body.Description) == "" {
		details = append(details, model.FieldError{Field: "description", Message: "required"})
	}
	if body.Priority == nil {
		details = append(details, model.FieldError{Field: "priority", Message: "required"})
	}
	showIf := body.ShowIf
	if showIf == "" {
		showIf = s.config.Rules.DefaultShowIf
	}
	if err := s.rules.Check(showIf); err != nil {
		details = append(details, model.FieldError{Field: "show_if", Message: err.Error()})
	}
	if len(details) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid request", details...))
		return
	}

	rr := newRemoteRequest(body.Description, *body.Priority, showIf, body.Labels, s.rules, s.sched.Len, s.logger)

	// Registered before Add: the walk Add may start looks it up.
	s.remember(rr)
	if err := s.sched.Add(rr); err != nil {
		s.forget(rr.ID())
		respondSchedulerError(w, reqID, err)
		return
	}

	respondCreated(w, reqID, rr.View())
}

// handleGetRequest returns one admitted request.
// GET /api/v1/requests/{id}
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rr := s.lookup(id)
	if rr == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("request", id))
		return
	}
	respondOK(w, reqID, rr.View())
}

// handleResignRequest yields the presentation slot held by the request.
// POST /api/v1/requests/{id}/resign
func (s *Server) handleResignRequest(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rr := s.lookup(id)
	if rr == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("request", id))
		return
	}
	if err := rr.Resign(rr); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	respondOK(w, reqID, rr.View())
}

// handleCancelRequest flags the request canceled. The flag only matters if
// the request has not been shown yet.
// POST /api/v1/requests/{id}/cancel
func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rr := s.lookup(id)
	if rr == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("request", id))
		return
	}
	rr.Cancel()
	s.logger.Info("cancel flag set", "request_id", id, "status", rr.Status())
	respondOK(w, reqID, rr.View())
}

// handleState reports the scheduler state and the active request.
// GET /api/v1/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.stateView())
}

func (s *Server) stateView() model.StateView {
	view := model.StateView{
		State:    s.sched.State(),
		Pending:  s.sched.Len(),
		Interval: s.sched.Interval(),
	}
	if rr, ok := s.sched.Active().(*RemoteRequest); ok {
		view.Active = rr.View()
	}
	return view
}
