package model

// ArbiterState represents the state of the scheduler's presentation state machine.
type ArbiterState string

const (
	// ArbiterStateIdle means nothing is pending or active.
	ArbiterStateIdle ArbiterState = "idle"
	// ArbiterStateActive decides the next candidate from the backlog.
	ArbiterStateActive ArbiterState = "active"
	// ArbiterStateHandleShow runs the candidate's WillShow hook. The candidate
	// may flag itself canceled during that hook.
	ArbiterStateHandleShow ArbiterState = "handle_show"
	// ArbiterStateHandleCancel retires a candidate that canceled itself.
	ArbiterStateHandleCancel ArbiterState = "handle_cancel"
	// ArbiterStateInProgress means the candidate is presented and the
	// scheduler waits for it to resign focus.
	ArbiterStateInProgress ArbiterState = "in_progress"
	// ArbiterStateHandleDismiss retires a candidate that resigned focus.
	ArbiterStateHandleDismiss ArbiterState = "handle_dismiss"
)

// String returns the string representation of the arbiter state.
func (s ArbiterState) String() string {
	return string(s)
}

// ValidArbiterTransitions defines the allowed state transitions of the scheduler.
var ValidArbiterTransitions = map[ArbiterState][]ArbiterState{
	ArbiterStateIdle:          {ArbiterStateIdle, ArbiterStateActive},
	ArbiterStateActive:        {ArbiterStateIdle, ArbiterStateHandleShow},
	ArbiterStateHandleShow:    {ArbiterStateInProgress, ArbiterStateHandleCancel},
	ArbiterStateHandleCancel:  {ArbiterStateActive},
	ArbiterStateInProgress:    {ArbiterStateInProgress, ArbiterStateHandleDismiss},
	ArbiterStateHandleDismiss: {ArbiterStateActive},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s ArbiterState) CanTransitionTo(next ArbiterState) bool {
	for _, allowed := range ValidArbiterTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsNoop reports whether moving to next is one of the self transitions that
// end a walk of the state machine without running a handler.
func (s ArbiterState) IsNoop(next ArbiterState) bool {
	return s == next && (s == ArbiterStateIdle || s == ArbiterStateInProgress)
}

// HasActive returns true if a request occupies the active slot in this state.
func (s ArbiterState) HasActive() bool {
	switch s {
	case ArbiterStateHandleShow, ArbiterStateHandleCancel, ArbiterStateInProgress, ArbiterStateHandleDismiss:
		return true
	}
	return false
}
