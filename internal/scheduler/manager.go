package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/gopop/internal/cell"
	"github.com/me/gopop/internal/pqueue"
	"github.com/me/gopop/pkg/model"
)

// Observer receives every event the Manager emits. Observers run outside the
// Manager's lock and may call back into it. Seq orders events globally.
type Observer func(model.Event)

// Option configures a Manager.
type Option func(*Manager)

// WithObserver registers an event observer. It may be given more than once.
func WithObserver(fn Observer) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, fn)
	}
}

// WithInterval sets the inter-presentation delay handed to presenters.
func WithInterval(iv model.Interval) Option {
	return func(m *Manager) {
		m.interval = iv
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

type backlog = pqueue.Queue[model.Request]

// Manager is the single-slot scheduler. At most one request is active; all
// others wait in a backlog ordered by descending priority.
//
// Lifecycle hooks run synchronously on the goroutine that drives the state
// machine (the caller of Add or ResignFocus), with the Manager's lock
// released. Only one goroutine walks the state machine at a time.
type Manager struct {
	mu       sync.Mutex
	state    model.ArbiterState
	active   model.Request
	reserved map[int]struct{}
	walking  bool
	resign   bool // the active request resigned while a walk was in flight
	outbox   []model.Event
	seq      int64

	backlog *cell.Cell[*backlog]

	observers []Observer
	interval  model.Interval
	now       func() time.Time
	logger    *slog.Logger
}

// NewManager creates an idle Manager.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		state:    model.ArbiterStateIdle,
		reserved: make(map[int]struct{}),
		backlog:  cell.New(pqueue.New[model.Request](), (*backlog).Clone),
		interval: model.DefaultInterval(),
		now:      time.Now,
		logger:   logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add admits req. The first request admitted into an empty Manager becomes
// active before Add returns; later ones wait in the backlog.
func (m *Manager) Add(req model.Request) error {
	if req == nil {
		return model.ErrNilRequest
	}

	m.mu.Lock()
	defer m.deliver()
	defer m.mu.Unlock()

	priority := req.Priority()
	if _, taken := m.reserved[priority]; taken {
		m.logger.Warn("request rejected", "description", req.Description(), "priority", priority, "reason", "duplicate priority")
		m.record(model.NewRequestEvent(model.EventRejected, req, m.now()))
		return fmt.Errorf("%w: %d (%s)", model.ErrDuplicatePriority, priority, req.Description())
	}

	req.Attach(m)
	m.reserved[priority] = struct{}{}

	var pending int
	m.backlog.Mutate(func(q **backlog) {
		(*q).Push(req)
		pending = (*q).Len()
	})
	m.logger.Info("request admitted", "description", req.Description(), "priority", priority, "pending", pending)
	m.record(model.NewRequestEvent(model.EventAdmitted, req, m.now()))

	m.becomeActiveIfNeeded(pending)
	return nil
}

// becomeActiveIfNeeded starts a walk when req is the only request the Manager
// knows about. m.mu must be held.
func (m *Manager) becomeActiveIfNeeded(pending int) {
	if m.walking || m.active != nil || pending != 1 {
		return
	}
	if m.state != model.ArbiterStateIdle {
		panic(&model.InvalidTransitionError{
			From:   m.state,
			To:     model.ArbiterStateActive,
			Reason: "one request known but state is not idle",
		})
	}
	m.drive(model.ArbiterStateActive)
}

// ResignFocus yields the presentation slot on behalf of req. It fails with
// model.ErrInactiveTask unless req is the active request.
func (m *Manager) ResignFocus(req model.Request) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", model.ErrInactiveTask)
	}

	m.mu.Lock()
	defer m.deliver()
	defer m.mu.Unlock()

	if m.active == nil || m.active != req {
		m.logger.Debug("resign rejected", "description", req.Description(), "priority", req.Priority(), "state", m.state)
		return fmt.Errorf("%w: %s", model.ErrInactiveTask, req.Description())
	}

	switch {
	case m.state == model.ArbiterStateInProgress && !m.walking:
		m.record(model.NewRequestEvent(model.EventResigned, req, m.now()))
		m.drive(model.ArbiterStateHandleDismiss)
	case (m.state == model.ArbiterStateHandleShow || m.state == model.ArbiterStateInProgress) && !m.resign:
		// Called from a hook (or concurrently with one); the walker
		// dismisses the request as soon as it reaches in_progress.
		m.resign = true
		m.record(model.NewRequestEvent(model.EventResigned, req, m.now()))
	default:
		m.logger.Debug("resign rejected", "description", req.Description(), "priority", req.Priority(), "state", m.state)
		return fmt.Errorf("%w: %s is %s", model.ErrInactiveTask, req.Description(), m.state)
	}
	return nil
}

// AllTasks returns the active request (if any) followed by the backlog in
// descending priority.
func (m *Manager) AllTasks() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := m.backlog.Load().Sorted()
	if m.active == nil {
		return pending
	}
	return append([]model.Request{m.active}, pending...)
}

// State returns the current state.
func (m *Manager) State() model.ArbiterState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active returns the request holding the presentation slot, or nil.
func (m *Manager) Active() model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Len returns the number of pending requests, excluding the active one.
func (m *Manager) Len() int {
	var n int
	m.backlog.View(func(q *backlog) { n = q.Len() })
	return n
}

// Interval returns the configured inter-presentation delay.
func (m *Manager) Interval() model.Interval {
	return m.interval
}

// --- state machine ---

// drive walks the state machine starting with a transition to next and stops
// at the first no-op self transition. m.mu must be held; it is released while
// hooks and observers run.
func (m *Manager) drive(next model.ArbiterState) {
	m.walking = true
	defer func() { m.walking = false }()

	for {
		from := m.state
		m.transit(next)
		if from.IsNoop(next) {
			return
		}
		next = m.enter(next)
	}
}

// transit validates and applies a single transition. m.mu must be held.
func (m *Manager) transit(to model.ArbiterState) {
	from := m.state
	if !from.CanTransitionTo(to) {
		panic(&model.InvalidTransitionError{From: from, To: to})
	}
	m.state = to
	if from.IsNoop(to) {
		return
	}
	m.logger.Debug("state transition", "from", from, "to", to)
	m.record(model.Event{Kind: model.EventTransition, From: from, To: to, At: m.now()})
}

// enter runs the handler of the state just entered and returns the state to
// move to next. m.mu must be held.
func (m *Manager) enter(state model.ArbiterState) model.ArbiterState {
	switch state {
	case model.ArbiterStateIdle:
		return model.ArbiterStateIdle

	case model.ArbiterStateActive:
		var next model.Request
		var ok bool
		m.backlog.Mutate(func(q **backlog) { next, ok = (*q).Pop() })
		if !ok {
			return model.ArbiterStateIdle
		}
		m.active = next
		return model.ArbiterStateHandleShow

	case model.ArbiterStateHandleShow:
		req := m.mustActive(state)
		var canceled bool
		m.hook(model.EventWillShow, req, func() {
			req.WillShow()
			canceled = req.IsCanceled()
		})
		if canceled {
			return model.ArbiterStateHandleCancel
		}
		return model.ArbiterStateInProgress

	case model.ArbiterStateHandleCancel:
		req := m.mustActive(state)
		m.logger.Info("request canceled", "description", req.Description(), "priority", req.Priority())
		m.hook(model.EventDidCancel, req, req.DidCancel)
		m.release(req)
		return model.ArbiterStateActive

	case model.ArbiterStateInProgress:
		req := m.mustActive(state)
		m.logger.Info("request shown", "description", req.Description(), "priority", req.Priority())
		m.hook(model.EventRender, req, req.Render)
		m.hook(model.EventDidShow, req, req.DidShow)
		if m.resign {
			m.resign = false
			return model.ArbiterStateHandleDismiss
		}
		return model.ArbiterStateInProgress

	case model.ArbiterStateHandleDismiss:
		req := m.mustActive(state)
		m.hook(model.EventWillDismiss, req, req.WillDismiss)
		m.hook(model.EventDidDismiss, req, req.DidDismiss)
		m.logger.Info("request dismissed", "description", req.Description(), "priority", req.Priority())
		m.release(req)
		return model.ArbiterStateActive
	}

	panic(&model.InvalidTransitionError{From: m.state, To: state, Reason: "unknown state"})
}

// release drops the priority reservation and the active slot held by req.
func (m *Manager) release(req model.Request) {
	delete(m.reserved, req.Priority())
	m.active = nil
	m.resign = false
}

func (m *Manager) mustActive(state model.ArbiterState) model.Request {
	if m.active == nil {
		panic(&model.InvalidTransitionError{From: m.state, To: state, Reason: "no active request"})
	}
	return m.active
}

// hook records kind for req and runs fn with m.mu released.
func (m *Manager) hook(kind model.EventKind, req model.Request, fn func()) {
	m.record(model.NewRequestEvent(kind, req, m.now()))
	m.mu.Unlock()
	defer m.mu.Lock()
	m.deliver()
	fn()
}

// --- events ---

// record queues ev for delivery. m.mu must be held.
func (m *Manager) record(ev model.Event) {
	if len(m.observers) == 0 {
		return
	}
	m.seq++
	ev.Seq = m.seq
	m.outbox = append(m.outbox, ev)
}

// deliver hands queued events to the observers. m.mu must not be held.
func (m *Manager) deliver() {
	if len(m.observers) == 0 {
		return
	}
	m.mu.Lock()
	events := m.outbox
	m.outbox = nil
	m.mu.Unlock()

	for _, ev := range events {
		for _, fn := range m.observers {
			fn(ev)
		}
	}
}
