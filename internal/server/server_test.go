package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/gopop/internal/config"
	"github.com/me/gopop/internal/store"
	"github.com/me/gopop/pkg/model"
)

func testServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	return testServerWithConfig(t, config.DefaultServerConfig(), opts...)
}

func testServerWithConfig(t *testing.T, cfg config.ServerConfig, opts ...Option) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := New(cfg, logger, append([]Option{WithJournal(st)}, opts...)...)
	t.Cleanup(srv.Close)
	return srv
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string, wantStatus int) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func doGet(t *testing.T, srv *Server, path string) envelope {
	t.Helper()
	return do(t, srv, "GET", path, "", http.StatusOK)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %T: %v (%s)", v, err, raw)
	}
	return v
}

func admit(t *testing.T, srv *Server, body string) model.RequestView {
	t.Helper()
	env := do(t, srv, "POST", "/api/v1/requests/", body, http.StatusCreated)
	return decode[model.RequestView](t, env.Data)
}

func TestDiscovery(t *testing.T) {
	srv := testServer(t)
	env := doGet(t, srv, "/api/v1/")
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if env.RequestID == "" {
		t.Error("request_id is empty")
	}

	data := decode[discoveryResponse](t, env.Data)
	if data.Name != "GoPop API" {
		t.Errorf("name = %q, want GoPop API", data.Name)
	}
	if len(data.Endpoints) < 8 {
		t.Errorf("endpoints count = %d, want >= 8", len(data.Endpoints))
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	env := doGet(t, srv, "/api/v1/health")

	data := decode[healthResponse](t, env.Data)
	if data.Status != "healthy" {
		t.Errorf("status = %q, want healthy", data.Status)
	}
	if data.Scheduler != model.ArbiterStateIdle {
		t.Errorf("scheduler = %q, want idle", data.Scheduler)
	}
	if data.Journal != "sqlite" {
		t.Errorf("journal = %q, want sqlite", data.Journal)
	}
	if !strings.HasPrefix(data.ServerID, "srv_") {
		t.Errorf("server_id = %q", data.ServerID)
	}
	if data.GoVersion == "" {
		t.Error("go_version is empty")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if !strings.HasPrefix(w.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", w.Header().Get("X-Request-ID"))
	}
}

func TestCreateRequest_FirstIsShown(t *testing.T) {
	srv := testServer(t)

	a := admit(t, srv, `{"description":"A","priority":1,"labels":{"kind":"banner"}}`)
	if !strings.HasPrefix(a.ID, "pop_") {
		t.Errorf("id = %q, want pop_ prefix", a.ID)
	}
	if a.Status != model.RequestStatusActive {
		t.Errorf("status = %s, want ACTIVE", a.Status)
	}
	if a.Labels["kind"] != "banner" {
		t.Errorf("labels = %v", a.Labels)
	}

	b := admit(t, srv, `{"description":"B","priority":2}`)
	if b.Status != model.RequestStatusPending {
		t.Errorf("second status = %s, want PENDING", b.Status)
	}

	state := decode[model.StateView](t, doGet(t, srv, "/api/v1/state").Data)
	if state.State != model.ArbiterStateInProgress {
		t.Errorf("state = %s, want in_progress", state.State)
	}
	if state.Active == nil || state.Active.ID != a.ID {
		t.Errorf("active = %+v, want %s", state.Active, a.ID)
	}
	if state.Pending != 1 {
		t.Errorf("pending = %d, want 1", state.Pending)
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing description", `{"priority":1}`, "description"},
		{"missing priority", `{"description":"x"}`, "priority"},
		{"bad show_if", `{"description":"x","priority":1,"show_if":"a ==="}`, "show_if"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := do(t, srv, "POST", "/api/v1/requests/", tt.body, http.StatusBadRequest)
			if env.Error == nil || env.Error.Code != model.ErrValidation {
				t.Fatalf("error = %+v, want VALIDATION_ERROR", env.Error)
			}
			found := false
			for _, d := range env.Error.Details {
				if d.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("details = %+v, want field %s", env.Error.Details, tt.field)
			}
		})
	}

	env := do(t, srv, "POST", "/api/v1/requests/", `{not json`, http.StatusBadRequest)
	if env.Error == nil || env.Error.Code != model.ErrValidation {
		t.Errorf("invalid JSON error = %+v", env.Error)
	}
}

func TestCreateRequest_DuplicatePriority(t *testing.T) {
	srv := testServer(t)
	admit(t, srv, `{"description":"A","priority":1}`)

	env := do(t, srv, "POST", "/api/v1/requests/", `{"description":"A2","priority":1}`, http.StatusConflict)
	if env.Error == nil || env.Error.Code != model.ErrConflict {
		t.Errorf("error = %+v, want CONFLICT", env.Error)
	}

	list := decode[[]model.RequestView](t, doGet(t, srv, "/api/v1/requests/").Data)
	if len(list) != 1 {
		t.Errorf("requests = %d, want 1", len(list))
	}
}

func TestListRequests_Order(t *testing.T) {
	srv := testServer(t)
	admit(t, srv, `{"description":"first","priority":0}`)
	admit(t, srv, `{"description":"low","priority":1}`)
	admit(t, srv, `{"description":"high","priority":3}`)
	admit(t, srv, `{"description":"mid","priority":2}`)

	env := doGet(t, srv, "/api/v1/requests/")
	list := decode[[]model.RequestView](t, env.Data)
	var got []string
	for _, v := range list {
		got = append(got, v.Description)
	}
	want := "first,high,mid,low"
	if strings.Join(got, ",") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
	if env.Pagination == nil || env.Pagination.Total != 4 {
		t.Errorf("pagination = %+v", env.Pagination)
	}
}

func TestResignRequest(t *testing.T) {
	srv := testServer(t)
	a := admit(t, srv, `{"description":"A","priority":1}`)
	b := admit(t, srv, `{"description":"B","priority":2}`)

	// A pending request cannot resign.
	env := do(t, srv, "POST", "/api/v1/requests/"+b.ID+"/resign", "", http.StatusConflict)
	if env.Error == nil || env.Error.Code != model.ErrInactive {
		t.Errorf("error = %+v, want INACTIVE_TASK", env.Error)
	}

	env = do(t, srv, "POST", "/api/v1/requests/"+a.ID+"/resign", "", http.StatusOK)
	if v := decode[model.RequestView](t, env.Data); v.Status != model.RequestStatusDismissed {
		t.Errorf("resigned status = %s, want DISMISSED", v.Status)
	}

	// A is retired, B took over.
	do(t, srv, "GET", "/api/v1/requests/"+a.ID, "", http.StatusNotFound)
	do(t, srv, "POST", "/api/v1/requests/"+a.ID+"/resign", "", http.StatusNotFound)
	got := decode[model.RequestView](t, doGet(t, srv, "/api/v1/requests/"+b.ID).Data)
	if got.Status != model.RequestStatusActive {
		t.Errorf("B status = %s, want ACTIVE", got.Status)
	}

	do(t, srv, "POST", "/api/v1/requests/"+b.ID+"/resign", "", http.StatusOK)
	state := decode[model.StateView](t, doGet(t, srv, "/api/v1/state").Data)
	if state.State != model.ArbiterStateIdle || state.Active != nil {
		t.Errorf("state = %+v, want idle", state)
	}
}

func TestCancelPendingRequest(t *testing.T) {
	srv := testServer(t)
	a := admit(t, srv, `{"description":"A","priority":1}`)
	b := admit(t, srv, `{"description":"B","priority":3}`)
	c := admit(t, srv, `{"description":"C","priority":2}`)

	env := do(t, srv, "POST", "/api/v1/requests/"+b.ID+"/cancel", "", http.StatusOK)
	if v := decode[model.RequestView](t, env.Data); !v.CancelFlag || v.Status != model.RequestStatusPending {
		t.Errorf("after cancel: %+v", v)
	}

	do(t, srv, "POST", "/api/v1/requests/"+a.ID+"/resign", "", http.StatusOK)

	// B was skipped, C is shown.
	do(t, srv, "GET", "/api/v1/requests/"+b.ID, "", http.StatusNotFound)
	state := decode[model.StateView](t, doGet(t, srv, "/api/v1/state").Data)
	if state.Active == nil || state.Active.ID != c.ID {
		t.Errorf("active = %+v, want C", state.Active)
	}

	env = doGet(t, srv, "/api/v1/events?request_id="+b.ID)
	events := decode[[]model.Event](t, env.Data)
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, string(ev.Kind))
	}
	if strings.Join(kinds, ",") != "admitted,will_show,did_cancel" {
		t.Errorf("B events = %v", kinds)
	}
}

func TestShowIfCancels(t *testing.T) {
	srv := testServer(t)

	v := admit(t, srv, `{"description":"muted","priority":1,"show_if":"labels.kind !== 'muted'","labels":{"kind":"muted"}}`)
	if v.Status != model.RequestStatusCanceled {
		t.Errorf("status = %s, want CANCELED", v.Status)
	}

	v = admit(t, srv, `{"description":"loud","priority":2,"show_if":"labels.kind !== 'muted'","labels":{"kind":"loud"}}`)
	if v.Status != model.RequestStatusActive {
		t.Errorf("status = %s, want ACTIVE", v.Status)
	}
}

func TestDefaultShowIf(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.Rules.DefaultShowIf = "request.priority >= 5"
	srv := testServerWithConfig(t, cfg)

	if v := admit(t, srv, `{"description":"minor","priority":1}`); v.Status != model.RequestStatusCanceled {
		t.Errorf("minor status = %s, want CANCELED", v.Status)
	}
	// An explicit rule overrides the default.
	if v := admit(t, srv, `{"description":"forced","priority":2,"show_if":"true"}`); v.Status != model.RequestStatusActive {
		t.Errorf("forced status = %s, want ACTIVE", v.Status)
	}
}

func TestRulesLib(t *testing.T) {
	srv := testServer(t, WithRulesLib(`function never() { return false; }`))
	if v := admit(t, srv, `{"description":"x","priority":1,"show_if":"never()"}`); v.Status != model.RequestStatusCanceled {
		t.Errorf("status = %s, want CANCELED", v.Status)
	}
}

func TestEventsJournal(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.Interval = model.ConstantInterval(1500 * time.Millisecond)
	srv := testServerWithConfig(t, cfg)

	a := admit(t, srv, `{"description":"A","priority":1}`)
	do(t, srv, "POST", "/api/v1/requests/"+a.ID+"/resign", "", http.StatusOK)

	env := doGet(t, srv, "/api/v1/events?limit=3")
	if env.Pagination == nil || env.Pagination.Limit != 3 || !env.Pagination.HasMore {
		t.Errorf("pagination = %+v", env.Pagination)
	}
	if env.Pagination.Total != 13 {
		t.Errorf("total = %d, want 13", env.Pagination.Total)
	}

	events := decode[[]model.Event](t, doGet(t, srv, "/api/v1/events?request_id="+a.ID).Data)
	var render *model.Event
	for i := range events {
		if events[i].Kind == model.EventRender {
			render = &events[i]
		}
	}
	if render == nil {
		t.Fatal("no render event journaled")
	}
	if got := render.Detail["delay_ms"]; got != float64(1500) {
		t.Errorf("delay_ms = %v, want 1500", got)
	}

	env = do(t, srv, "GET", "/api/v1/events?limit=abc", "", http.StatusBadRequest)
	if env.Error == nil || env.Error.Details[0].Field != "limit" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestEventsWithoutJournal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	srv := New(config.DefaultServerConfig(), logger)
	admit(t, srv, `{"description":"A","priority":1}`)

	env := doGet(t, srv, "/api/v1/events")
	if events := decode[[]model.Event](t, env.Data); len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}
	if h := decode[healthResponse](t, doGet(t, srv, "/api/v1/health").Data); h.Journal != "disabled" {
		t.Errorf("journal = %q, want disabled", h.Journal)
	}
}

// readSSE reads one SSE message (event name and data) from r.
func readSSE(t *testing.T, r *bufio.Reader) (string, []byte) {
	t.Helper()
	var name string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read sse: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			return name, []byte(strings.TrimPrefix(line, "data: "))
		}
	}
}

func TestSSEEvents(t *testing.T) {
	srv := testServer(t, WithHeartbeat(time.Hour))
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/v1/sse/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET sse: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	name, data := readSSE(t, r)
	if name != "state" {
		t.Fatalf("first event = %q, want state", name)
	}
	if st := decode[model.StateView](t, data); st.State != model.ArbiterStateIdle {
		t.Errorf("initial state = %s", st.State)
	}

	body := strings.NewReader(`{"description":"A","priority":1}`)
	post, err := http.Post(ts.URL+"/api/v1/requests/", "application/json", body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	post.Body.Close()

	var names []string
	for len(names) < 3 {
		name, data := readSSE(t, r)
		ev := decode[model.Event](t, data)
		if string(ev.Kind) != name {
			t.Errorf("event name %q does not match kind %q", name, ev.Kind)
		}
		names = append(names, name)
	}
	if strings.Join(names, ",") != "admitted,transition,transition" {
		t.Errorf("events = %v", names)
	}
}
