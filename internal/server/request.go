package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/gopop/internal/rules"
	"github.com/me/gopop/pkg/model"
)

// RemoteRequest is a request admitted over the API. Its presentation happens
// in whatever client watches the event stream; the hooks only track status
// and evaluate the show_if rule.
type RemoteRequest struct {
	*model.BaseRequest

	id        string
	showIf    string
	labels    map[string]string
	createdAt time.Time

	rules   *rules.Evaluator
	pending func() int
	logger  *slog.Logger

	mu     sync.Mutex
	status model.RequestStatus
	delay  time.Duration
}

func newRemoteRequest(description string, priority int, showIf string, labels map[string]string,
	ev *rules.Evaluator, pending func() int, logger *slog.Logger) *RemoteRequest {
	id := "pop_" + uuid.New().String()
	return &RemoteRequest{
		BaseRequest: model.NewBaseRequest(description, priority),
		id:          id,
		showIf:      showIf,
		labels:      labels,
		createdAt:   time.Now().UTC(),
		rules:       ev,
		pending:     pending,
		logger:      logger.With("request_id", id),
		status:      model.RequestStatusPending,
	}
}

// ID implements model.Identified.
func (r *RemoteRequest) ID() string { return r.id }

// WillShow evaluates show_if and cancels the request when it is false or
// cannot be evaluated.
func (r *RemoteRequest) WillShow() {
	show, err := r.rules.ShouldShow(r.showIf, rules.Context{
		ID:          r.id,
		Description: r.Description(),
		Priority:    r.Priority(),
		Labels:      r.labels,
		Pending:     r.pending(),
		Now:         time.Now(),
	})
	if err != nil {
		r.logger.Warn("show_if failed, canceling", "show_if", r.showIf, "error", err)
		r.Cancel()
		return
	}
	if !show {
		r.logger.Info("show_if false, canceling", "show_if", r.showIf)
		r.Cancel()
		return
	}
	r.setStatus(model.RequestStatusActive)
}

// Render logs the hand-off; the event observer publishes it to clients.
func (r *RemoteRequest) Render() {
	r.logger.Debug("render", "delay", r.Delay())
}

func (r *RemoteRequest) DidCancel()  { r.setStatus(model.RequestStatusCanceled) }
func (r *RemoteRequest) DidDismiss() { r.setStatus(model.RequestStatusDismissed) }

// Status returns the request's position as seen by the API.
func (r *RemoteRequest) Status() model.RequestStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *RemoteRequest) setStatus(st model.RequestStatus) {
	r.mu.Lock()
	r.status = st
	r.mu.Unlock()
}

// Delay is the inter-presentation delay drawn for the current presentation.
func (r *RemoteRequest) Delay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delay
}

func (r *RemoteRequest) setDelay(d time.Duration) {
	r.mu.Lock()
	r.delay = d
	r.mu.Unlock()
}

// View returns the JSON representation.
func (r *RemoteRequest) View() *model.RequestView {
	return &model.RequestView{
		ID:          r.id,
		Description: r.Description(),
		Priority:    r.Priority(),
		Status:      r.Status(),
		ShowIf:      r.showIf,
		Labels:      r.labels,
		CancelFlag:  r.IsCanceled(),
		CreatedAt:   r.createdAt,
	}
}
