package server

import (
	"net/http"
	"strconv"

	"github.com/me/gopop/pkg/model"
)

// handleListEvents pages through the event journal.
// GET /api/v1/events?request_id=&limit=&offset=
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid limit",
				model.FieldError{Field: "limit", Message: err.Error()}))
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid offset",
				model.FieldError{Field: "offset", Message: err.Error()}))
			return
		}
		opts.Offset = n
	}
	opts.RequestID = q.Get("request_id")
	opts.Clamp()

	if s.journal == nil {
		respondList(w, reqID, []*model.Event{}, &model.Pagination{Limit: opts.Limit, Offset: opts.Offset})
		return
	}

	events, total, err := s.journal.ListEvents(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if events == nil {
		events = []*model.Event{}
	}
	respondList(w, reqID, events, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(events) < total,
	})
}
