package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries with pagination and filtering.
type ListOptions struct {
	Limit     int
	Offset    int
	RequestID string // Optional request filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 50, Offset: 0}
}

// Clamp enforces limits (max 500, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// RequestStatus is the position of a request as seen by the host API.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusActive    RequestStatus = "ACTIVE"
	RequestStatusCanceled  RequestStatus = "CANCELED"
	RequestStatusDismissed RequestStatus = "DISMISSED"
)

// RequestView is the JSON representation of a request.
type RequestView struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Priority    int               `json:"priority"`
	Status      RequestStatus     `json:"status"`
	ShowIf      string            `json:"show_if,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	CancelFlag  bool              `json:"cancel_flag"`
	CreatedAt   time.Time         `json:"created_at"`
}

// StateView is the JSON representation of the scheduler as a whole.
type StateView struct {
	State    ArbiterState `json:"state"`
	Active   *RequestView `json:"active,omitempty"`
	Pending  int          `json:"pending"`
	Interval Interval     `json:"interval"`
}
