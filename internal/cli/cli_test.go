package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/me/gopop/internal/config"
	"github.com/me/gopop/internal/server"
	"github.com/me/gopop/internal/store"
)

// startTestServer starts a server with an in-memory SQLite journal and returns the URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := server.New(config.DefaultServerConfig(), srvLogger, server.WithJournal(st))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return ts.URL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("gopop %s: %v\noutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

var idPattern = regexp.MustCompile(`pop_[0-9a-f-]{36}`)

// addRequest runs "gopop add" and returns the new request ID.
func addRequest(t *testing.T, url, description, priority string, extra ...string) (string, string) {
	t.Helper()
	args := append([]string{"--server", url, "add", description, "-p", priority}, extra...)
	out := mustRun(t, args...)
	id := idPattern.FindString(out)
	if id == "" {
		t.Fatalf("no request ID in output: %s", out)
	}
	return id, out
}

func TestAddListResign(t *testing.T) {
	url := startTestServer(t)

	idA, out := addRequest(t, url, "disk full", "1", "--label", "kind=banner")
	if !strings.Contains(out, "Admitted "+idA+" (priority 1)") || !strings.Contains(out, "ACTIVE") {
		t.Errorf("add A output: %s", out)
	}
	idB, out := addRequest(t, url, "update ready", "2")
	if !strings.Contains(out, "PENDING") {
		t.Errorf("add B output: %s", out)
	}

	out = mustRun(t, "--server", url, "list")
	for _, want := range []string{"ID", "PRIORITY", idA, idB, "disk full", "update ready"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q: %s", want, out)
		}
	}
	if strings.Index(out, idA) > strings.Index(out, idB) {
		t.Errorf("active request should be listed first: %s", out)
	}

	out = mustRun(t, "--server", url, "status")
	if !strings.Contains(out, "State:    in_progress") || !strings.Contains(out, idA) {
		t.Errorf("status output: %s", out)
	}

	out = mustRun(t, "--server", url, "status", idA)
	if !strings.Contains(out, "Label:       kind=banner") {
		t.Errorf("status <id> output: %s", out)
	}

	out = mustRun(t, "--server", url, "resign", idA)
	if !strings.Contains(out, "DISMISSED") {
		t.Errorf("resign output: %s", out)
	}

	out = mustRun(t, "--server", url, "status")
	if !strings.Contains(out, idB) || !strings.Contains(out, "Pending:  0") {
		t.Errorf("status after resign: %s", out)
	}
}

func TestAddErrors(t *testing.T) {
	url := startTestServer(t)
	addRequest(t, url, "first", "5")

	if _, err := runCLI(t, "--server", url, "add", "dup", "-p", "5"); err == nil || !strings.Contains(err.Error(), "CONFLICT") {
		t.Errorf("duplicate priority: err = %v", err)
	}
	if _, err := runCLI(t, "--server", url, "add", "no priority"); err == nil || !strings.Contains(err.Error(), "--priority") {
		t.Errorf("missing priority: err = %v", err)
	}
	if _, err := runCLI(t, "--server", url, "add", "bad rule", "-p", "6", "--show-if", "a ==="); err == nil || !strings.Contains(err.Error(), "VALIDATION_ERROR") {
		t.Errorf("bad show_if: err = %v", err)
	}
}

func TestResignPendingFails(t *testing.T) {
	url := startTestServer(t)
	addRequest(t, url, "A", "1")
	idB, _ := addRequest(t, url, "B", "2")

	_, err := runCLI(t, "--server", url, "resign", idB)
	if err == nil || !strings.Contains(err.Error(), "INACTIVE_TASK") {
		t.Errorf("err = %v, want INACTIVE_TASK", err)
	}
	_, err = runCLI(t, "--server", url, "resign", "pop_nope")
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestCancelAndEvents(t *testing.T) {
	url := startTestServer(t)
	idA, _ := addRequest(t, url, "A", "1")
	idB, _ := addRequest(t, url, "B", "2")

	out := mustRun(t, "--server", url, "cancel", idB)
	if !strings.Contains(out, "cancel flag set") {
		t.Errorf("cancel output: %s", out)
	}
	out = mustRun(t, "--server", url, "cancel", idA)
	if !strings.Contains(out, "already shown") {
		t.Errorf("cancel of active request should warn: %s", out)
	}

	mustRun(t, "--server", url, "resign", idA)

	out = mustRun(t, "--server", url, "events", "--request", idB)
	for _, want := range []string{"admitted", "will_show", "did_cancel"} {
		if !strings.Contains(out, want) {
			t.Errorf("events output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "render") {
		t.Errorf("canceled request must not render: %s", out)
	}

	out = mustRun(t, "--server", url, "events", "--limit", "2")
	if !strings.Contains(out, "of") || !strings.Contains(out, "shown") {
		t.Errorf("expected pagination note: %s", out)
	}
	if !strings.Contains(out, "idle → active") {
		t.Errorf("expected transition detail: %s", out)
	}
}

func TestWatch(t *testing.T) {
	url := startTestServer(t)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := runCLI(t, "--server", url, "watch", "-n", "3")
		done <- result{out, err}
	}()

	// Wait for the stream to subscribe before producing events.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if subscribers(t, url) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watch never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(url+"/api/v1/requests/", "application/json",
		strings.NewReader(`{"description":"A","priority":1}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("watch: %v\noutput: %s", r.err, r.out)
		}
		for _, want := range []string{"state idle, 0 pending", "admitted", "A(1)", "idle → active"} {
			if !strings.Contains(r.out, want) {
				t.Errorf("watch output missing %q: %s", want, r.out)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not exit after 3 events")
	}
}

func subscribers(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Get(url + "/api/v1/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	var env struct {
		Data struct {
			Subscribers int `json:"subscribers"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return env.Data.Subscribers
}

func TestInvalidLogFormat(t *testing.T) {
	url := startTestServer(t)
	if _, err := runCLI(t, "--server", url, "--log-format", "xml", "list"); err == nil {
		t.Error("expected error for unknown log format")
	}
}

func TestListEmpty(t *testing.T) {
	url := startTestServer(t)
	out := mustRun(t, "--server", url, "list")
	if !strings.Contains(out, "No requests.") {
		t.Errorf("output: %s", out)
	}
}
