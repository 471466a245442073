package store

import (
	"context"
	"time"

	"github.com/me/gopop/pkg/model"
)

// Journal is the append-only audit log of scheduler events. It is never
// replayed into a scheduler; the backlog lives in memory only.
type Journal interface {
	AppendEvent(ctx context.Context, ev *model.Event) error
	// ListEvents returns events in append order together with the total
	// number of events matching opts.RequestID.
	ListEvents(ctx context.Context, opts model.ListOptions) ([]*model.Event, int, error)
	// Prune deletes events recorded before the cutoff.
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
