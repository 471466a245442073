package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/gopop/internal/config"
	"github.com/me/gopop/internal/rules"
	"github.com/me/gopop/internal/scheduler"
	"github.com/me/gopop/internal/store"
	"github.com/me/gopop/pkg/model"
)

// Server is the GoPop REST API server. It owns a scheduler Manager and admits
// RemoteRequests into it.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time

	sched   *scheduler.Manager
	journal store.Journal // optional; nil disables /events history
	rules   *rules.Evaluator
	hub     *Hub

	mu       sync.RWMutex
	requests map[string]*RemoteRequest // admitted and not yet retired

	schedOpts    []scheduler.Option
	heartbeat    time.Duration
	journalFails int
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithJournal records every scheduler event in j.
func WithJournal(j store.Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// WithSchedulerOptions passes extra options to the Manager (clock, observers).
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(s *Server) {
		s.schedOpts = append(s.schedOpts, opts...)
	}
}

// WithRulesLib loads JavaScript helpers available to every show_if rule.
func WithRulesLib(lib ...string) Option {
	return func(s *Server) {
		s.rules = rules.NewEvaluator(lib...)
	}
}

// WithHeartbeat sets the SSE heartbeat period.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		rules:     rules.NewEvaluator(),
		hub:       NewHub(64),
		requests:  make(map[string]*RemoteRequest),
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	schedOpts := append([]scheduler.Option{
		scheduler.WithInterval(cfg.Interval),
		scheduler.WithObserver(s.observe),
	}, s.schedOpts...)
	s.sched = scheduler.NewManager(logger, schedOpts...)

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Scheduler returns the Manager behind the API.
func (s *Server) Scheduler() *scheduler.Manager {
	return s.sched
}

// Close ends every live event stream.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Scheduler
		r.Get("/state", s.handleState)

		// Requests
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", s.handleListRequests)
			r.Post("/", s.handleCreateRequest)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRequest)
				r.Post("/resign", s.handleResignRequest)
				r.Post("/cancel", s.handleCancelRequest)
			})
		})

		// Journal
		r.Get("/events", s.handleListEvents)

		// SSE endpoints for real-time updates
		r.Route("/sse", func(r chi.Router) {
			r.Get("/events", s.handleSSEEvents)
		})
	})
}

// observe is the Manager observer. It runs on the goroutine walking the
// state machine, outside the Manager's lock.
func (s *Server) observe(ev model.Event) {
	switch ev.Kind {
	case model.EventRender:
		if rr := s.lookup(ev.RequestID); rr != nil {
			delay := s.config.Interval.Next(nil)
			rr.setDelay(delay)
			ev.Detail = map[string]any{"delay_ms": delay.Milliseconds()}
		}
	case model.EventDidCancel, model.EventDidDismiss:
		s.forget(ev.RequestID)
	}

	s.hub.Publish(ev)

	if s.journal == nil {
		return
	}
	// The walk may have been started by an HTTP handler whose context is
	// about to end; the journal write must not depend on it.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.journal.AppendEvent(ctx, &ev); err != nil {
		s.mu.Lock()
		s.journalFails++
		s.mu.Unlock()
		s.logger.Error("journal append failed", "seq", ev.Seq, "kind", ev.Kind, "error", err)
	}
}

func (s *Server) remember(rr *RemoteRequest) {
	s.mu.Lock()
	s.requests[rr.ID()] = rr
	s.mu.Unlock()
}

func (s *Server) forget(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	delete(s.requests, id)
	s.mu.Unlock()
}

func (s *Server) lookup(id string) *RemoteRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[id]
}
