package model

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Lifecycle is the set of hooks the scheduler calls on a request while it
// moves through the presentation state machine.
type Lifecycle interface {
	// WillShow runs when the request has been promoted to the active slot.
	// This is the only hook during which the request may cancel itself.
	WillShow()
	// DidShow runs after Render when the request is presented.
	DidShow()
	// DidCancel runs when the request canceled itself during WillShow.
	// Render is never called for a canceled request.
	DidCancel()
	// WillDismiss and DidDismiss run, in that order, after the request
	// resigned focus.
	WillDismiss()
	DidDismiss()
}

// Request is a unit of work competing for the single presentation slot.
//
// Implementations must be comparable; the scheduler identifies requests
// with ==, so pointer types are the norm.
type Request interface {
	Lifecycle

	// Description is an opaque label. The scheduler only logs it.
	Description() string

	// Priority orders the backlog; the greatest value is shown first. It must
	// be unique among pending and active requests.
	Priority() int

	// IsCanceled is read exactly once per activation, immediately after
	// WillShow returns. Later changes have no effect.
	IsCanceled() bool

	// Render hands the request to the presentation layer.
	Render()

	// Attach records the scheduler that admitted the request. The handle is
	// non-owning; the request uses it to resign focus.
	Attach(owner Resigner)
}

// Resigner is the handle a request uses to yield the presentation slot.
type Resigner interface {
	ResignFocus(req Request) error
}

// Identified is implemented by requests that carry a stable identifier.
// Events and logs include it when present.
type Identified interface {
	ID() string
}

// RequestID returns the identifier of req, or "" if it has none.
func RequestID(req Request) string {
	if id, ok := req.(Identified); ok {
		return id.ID()
	}
	return ""
}

// BaseRequest implements the bookkeeping parts of Request. Embed it in a
// concrete request type and override the hooks that matter:
//
//	type Alert struct {
//		*model.BaseRequest
//	}
//
//	func (a *Alert) Render() { ... }
type BaseRequest struct {
	description string
	priority    int
	canceled    atomic.Bool

	mu    sync.Mutex
	owner Resigner
}

// NewBaseRequest creates a BaseRequest with the given label and priority.
func NewBaseRequest(description string, priority int) *BaseRequest {
	return &BaseRequest{description: description, priority: priority}
}

func (b *BaseRequest) Description() string { return b.description }
func (b *BaseRequest) Priority() int       { return b.priority }
func (b *BaseRequest) IsCanceled() bool    { return b.canceled.Load() }

// Cancel flags the request as canceled. The flag only takes effect if it is
// set before or during WillShow.
func (b *BaseRequest) Cancel() { b.canceled.Store(true) }

// Attach implements Request.
func (b *BaseRequest) Attach(owner Resigner) {
	b.mu.Lock()
	b.owner = owner
	b.mu.Unlock()
}

// Owner returns the attached scheduler handle, or nil before admission.
func (b *BaseRequest) Owner() Resigner {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

// Resign yields focus on behalf of self, which must be the Request value
// that embeds b (the scheduler compares identities).
func (b *BaseRequest) Resign(self Request) error {
	owner := b.Owner()
	if owner == nil {
		return fmt.Errorf("%w: %q was never admitted", ErrInactiveTask, b.description)
	}
	return owner.ResignFocus(self)
}

func (b *BaseRequest) Render()      {}
func (b *BaseRequest) WillShow()    {}
func (b *BaseRequest) DidShow()     {}
func (b *BaseRequest) DidCancel()   {}
func (b *BaseRequest) WillDismiss() {}
func (b *BaseRequest) DidDismiss()  {}

func (b *BaseRequest) String() string {
	return fmt.Sprintf("%s(%d)", b.description, b.priority)
}
