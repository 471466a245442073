// Package rules evaluates show_if predicates using JavaScript (goja).
//
// A predicate is a JavaScript expression evaluated when a request is about to
// be shown. A falsy result cancels the request. Predicates see:
//
//	request.id, request.description, request.priority, request.labels
//	labels    (shorthand for request.labels)
//	pending   number of requests waiting behind this one
//	now       current time as a JavaScript Date
package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout bounds a single predicate evaluation.
const DefaultTimeout = 100 * time.Millisecond

// ErrTimeout is returned when a predicate runs longer than the evaluator's timeout.
var ErrTimeout = errors.New("show_if evaluation timed out")

// Context holds the values a predicate can reference.
type Context struct {
	ID          string
	Description string
	Priority    int
	Labels      map[string]string
	Pending     int
	Now         time.Time
}

// Evaluator evaluates show_if predicates. It is safe for concurrent use; each
// evaluation gets its own VM.
type Evaluator struct {
	lib     []string
	timeout time.Duration
}

// NewEvaluator creates an evaluator. lib holds JavaScript snippets (helper
// functions) loaded before every evaluation.
func NewEvaluator(lib ...string) *Evaluator {
	return &Evaluator{lib: lib, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of e with a different evaluation timeout.
func (e *Evaluator) WithTimeout(d time.Duration) *Evaluator {
	cp := *e
	cp.timeout = d
	return &cp
}

// Check compiles expr without running it. Empty expressions are valid.
func (e *Evaluator) Check(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	if _, err := goja.Compile("show_if", wrap(expr), false); err != nil {
		return fmt.Errorf("show_if syntax: %w", err)
	}
	return nil
}

// ShouldShow evaluates expr against ctx. An empty expression always shows.
func (e *Evaluator) ShouldShow(expr string, ctx Context) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}

	vm, err := e.setupVM(ctx)
	if err != nil {
		return false, err
	}

	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() { vm.Interrupt(ErrTimeout) })
		defer timer.Stop()
	}

	val, err := vm.RunString(wrap(expr))
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return false, fmt.Errorf("%w: %s", ErrTimeout, expr)
		}
		return false, fmt.Errorf("show_if error in %q: %w", expr, err)
	}
	if goja.IsUndefined(val) {
		return false, fmt.Errorf("show_if %q returned undefined (invalid property access)", expr)
	}
	return val.ToBoolean(), nil
}

// setupVM creates a VM with the library and the request context loaded.
func (e *Evaluator) setupVM(ctx Context) (*goja.Runtime, error) {
	vm := goja.New()

	for i, lib := range e.lib {
		if _, err := vm.RunString(lib); err != nil {
			return nil, fmt.Errorf("lib[%d]: %w", i, err)
		}
	}

	labels := map[string]any{}
	for k, v := range ctx.Labels {
		labels[k] = v
	}
	request := map[string]any{
		"id":          ctx.ID,
		"description": ctx.Description,
		"priority":    ctx.Priority,
		"labels":      labels,
	}
	if err := vm.Set("request", request); err != nil {
		return nil, fmt.Errorf("set request: %w", err)
	}
	if err := vm.Set("labels", labels); err != nil {
		return nil, fmt.Errorf("set labels: %w", err)
	}
	if err := vm.Set("pending", ctx.Pending); err != nil {
		return nil, fmt.Errorf("set pending: %w", err)
	}

	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	date, err := vm.New(vm.Get("Date"), vm.ToValue(now.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("set now: %w", err)
	}
	if err := vm.Set("now", date); err != nil {
		return nil, fmt.Errorf("set now: %w", err)
	}

	return vm, nil
}

// wrap parenthesizes expr so object literals and trailing comments parse as
// a single expression.
func wrap(expr string) string {
	return "(" + expr + "\n)"
}
