package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/lanecap/pkg/observability"
	"github.com/matzehuels/lanecap/pkg/pipeline"
)

const diamond = `{
  "nodes": [{"id": "A"}, {"id": "B"}, {"id": "C"}, {"id": "D"}],
  "edges": [
    {"from": "A", "to": "B"}, {"from": "A", "to": "C"},
    {"from": "B", "to": "D"}, {"from": "C", "to": "D"}
  ]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	srv := httptest.NewServer(New(pipeline.NewRunner(nil, nil, logger), logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if _, err := uuid.Parse(resp.Header.Get(HeaderRequestID)); err != nil {
		t.Errorf("X-Request-ID = %q, want a UUID", resp.Header.Get(HeaderRequestID))
	}
}

func TestRequestIDIsKept(t *testing.T) {
	srv := newTestServer(t)
	id := uuid.NewString()
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set(HeaderRequestID, id)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get(HeaderRequestID); got != id {
		t.Errorf("X-Request-ID = %q, want %q", got, id)
	}
}

func TestPlans(t *testing.T) {
	srv := newTestServer(t)
	resp := post(t, srv, "/v1/plans", `{"graph": `+diamond+`, "lanes": 2, "formats": ["json", "dot"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody[PlanResponse](t, resp)
	if body.Plan == nil || body.Plan.Lanes != 2 || len(body.Plan.Steps) != 4 {
		t.Fatalf("plan = %+v", body.Plan)
	}
	if body.Stats.CrossLaneWaits != 2 || body.Stats.Fences != 4 {
		t.Errorf("stats = %+v", body.Stats)
	}
	if body.GraphHash == "" {
		t.Error("graph_hash is empty")
	}
	if !strings.HasPrefix(body.Artifacts["dot"], "digraph plan") {
		t.Errorf("dot artifact = %.40q", body.Artifacts["dot"])
	}
	if _, ok := body.Artifacts["json"]; ok {
		t.Error("json artifact duplicated in response")
	}
}

func TestPlans_TOML(t *testing.T) {
	srv := newTestServer(t)
	toml := "[[nodes]]\nid = \"a\"\n[[nodes]]\nid = \"b\"\n[[edges]]\nfrom = \"a\"\nto = \"b\"\n"
	payload, _ := json.Marshal(map[string]any{"graph_toml": toml, "strategy": "sequential"})

	resp := post(t, srv, "/v1/plans", string(payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[PlanResponse](t, resp)
	if body.Plan.Strategy != "sequential" || body.Plan.Lanes != 1 {
		t.Errorf("plan = %s/%d", body.Plan.Strategy, body.Plan.Lanes)
	}
}

func TestCaptures(t *testing.T) {
	srv := newTestServer(t)
	resp := post(t, srv, "/v1/captures", `{"graph": `+diamond+`, "lanes": 2}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody[CaptureResponse](t, resp)
	if len(body.Replay) != 4 || body.Replay[0] != "A" || body.Replay[3] != "D" {
		t.Errorf("replay = %v", body.Replay)
	}
	if body.Capture.Lanes != 2 || body.Capture.Fences != body.Stats.Fences || body.Capture.Waits != body.Stats.Waits {
		t.Errorf("capture = %+v, stats = %+v", body.Capture, body.Stats)
	}
	if !strings.HasPrefix(body.DOT, "digraph capture") {
		t.Errorf("dot = %.40q", body.DOT)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed", `{"graph": `, http.StatusBadRequest, "INVALID_FORMAT"},
		{"unknown field", `{"graph": ` + diamond + `, "lanez": 2}`, http.StatusBadRequest, "INVALID_FORMAT"},
		{"no graph", `{"lanes": 2}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"both graphs", `{"graph": ` + diamond + `, "graph_toml": "x"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"negative lanes", `{"graph": ` + diamond + `, "lanes": -1}`, http.StatusBadRequest, "CONFIGURATION_ERROR"},
		{"bad strategy", `{"graph": ` + diamond + `, "strategy": "greedy"}`, http.StatusBadRequest, "CONFIGURATION_ERROR"},
		{"cycle", `{"graph": {"nodes": [{"id": "a"}, {"id": "b"}], "edges": [{"from": "a", "to": "b"}, {"from": "b", "to": "a"}]}}`, http.StatusBadRequest, "INVALID_GRAPH"},
	}
	srv := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv, "/v1/plans", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			body := decodeBody[ErrorResponse](t, resp)
			if body.Error.Code != tt.code {
				t.Errorf("code = %q, want %q (%s)", body.Error.Code, tt.code, body.Error.Message)
			}
			if body.Error.RequestID != resp.Header.Get(HeaderRequestID) {
				t.Errorf("request_id = %q, header = %q", body.Error.RequestID, resp.Header.Get(HeaderRequestID))
			}
		})
	}
}

func TestWrongContentType(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.Client().Post(srv.URL+"/v1/plans", "text/plain", bytes.NewReader([]byte(diamond)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", resp.StatusCode)
	}
}

type recordingHTTPHooks struct {
	mu       sync.Mutex
	requests []string
	statuses []int
	errors   int
}

func (h *recordingHTTPHooks) OnRequest(_ context.Context, method, path, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, method+" "+path)
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, _, _, _ string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, status)
}

func (h *recordingHTTPHooks) OnError(context.Context, string, string, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors++
}

func TestHTTPHooks(t *testing.T) {
	observability.Reset()
	defer observability.Reset()
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)

	srv := newTestServer(t)
	post(t, srv, "/v1/plans", `{"graph": `+diamond+`}`)
	post(t, srv, "/v1/plans", `{}`)

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.requests) != 2 || hooks.requests[0] != "POST /v1/plans" {
		t.Errorf("requests = %v", hooks.requests)
	}
	if len(hooks.statuses) != 2 || hooks.statuses[0] != 200 || hooks.statuses[1] != 400 {
		t.Errorf("statuses = %v, want [200 400]", hooks.statuses)
	}
	if hooks.errors != 1 {
		t.Errorf("errors = %d, want 1", hooks.errors)
	}
}

func TestListenAndServe_Shutdown(t *testing.T) {
	logger := log.NewWithOptions(io.Discard, log.Options{})
	s := New(pipeline.NewRunner(nil, nil, logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
