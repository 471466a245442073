package model

import "time"

// EventKind identifies what happened to the scheduler or one of its requests.
type EventKind string

const (
	EventAdmitted    EventKind = "admitted"
	EventRejected    EventKind = "rejected"
	EventTransition  EventKind = "transition"
	EventWillShow    EventKind = "will_show"
	EventRender      EventKind = "render"
	EventDidShow     EventKind = "did_show"
	EventDidCancel   EventKind = "did_cancel"
	EventWillDismiss EventKind = "will_dismiss"
	EventDidDismiss  EventKind = "did_dismiss"
	EventResigned    EventKind = "resigned"
)

// Event is a single observation emitted by the scheduler.
// Transition events carry From/To; request events carry the request fields.
type Event struct {
	Seq         int64          `json:"seq"`
	Kind        EventKind      `json:"kind"`
	RequestID   string         `json:"request_id,omitempty"`
	Description string         `json:"description,omitempty"`
	Priority    int            `json:"priority"`
	From        ArbiterState   `json:"from,omitempty"`
	To          ArbiterState   `json:"to,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
	At          time.Time      `json:"at"`
}

// NewRequestEvent creates an event describing req.
func NewRequestEvent(kind EventKind, req Request, at time.Time) Event {
	return Event{
		Kind:        kind,
		RequestID:   RequestID(req),
		Description: req.Description(),
		Priority:    req.Priority(),
		At:          at,
	}
}
