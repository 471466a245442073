package scheduler

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/me/gopop/pkg/model"
)

// Scheduler admits interruption requests and decides which one owns the
// presentation slot.
type Scheduler interface {
	model.Resigner

	// Add admits a request. It fails with model.ErrDuplicatePriority when
	// the priority is held by a pending or active request.
	Add(req model.Request) error

	// AllTasks returns the active request first, then the backlog in
	// descending priority.
	AllTasks() []model.Request

	// State returns the current state of the presentation state machine.
	State() model.ArbiterState
}

var (
	sharedOnce sync.Once
	shared     atomic.Pointer[Manager]
)

// InitShared creates the process-wide Manager. Only the first call
// constructs it; later calls return the same instance and ignore their
// arguments.
func InitShared(logger *slog.Logger, opts ...Option) *Manager {
	sharedOnce.Do(func() {
		shared.Store(NewManager(logger, opts...))
	})
	return shared.Load()
}

// Shared returns the process-wide Manager, or nil if InitShared was never called.
func Shared() *Manager {
	return shared.Load()
}
