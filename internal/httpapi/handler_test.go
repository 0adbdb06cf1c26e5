package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/tracksync/internal/app"
	"github.com/cesargomez89/tracksync/internal/config"
	"github.com/cesargomez89/tracksync/internal/fetcher"
	"github.com/cesargomez89/tracksync/internal/httpapi/dto"
	"github.com/cesargomez89/tracksync/internal/logger"
)

// blockingFetcher holds every fetch until the run is cancelled.
type blockingFetcher struct{}

func (blockingFetcher) Fetch(ctx context.Context, req fetcher.Request, _ func(fetcher.Progress)) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type testServer struct {
	srv     *httptest.Server
	runs    *app.Runs
	session *app.Session
	csvPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.OutputRoot = t.TempDir()
	cfg.TagFiles = false

	csvPath := filepath.Join(t.TempDir(), "Mix.csv")
	if err := os.WriteFile(csvPath, []byte("Track Name,Artist Name(s)\nOne,A\nTwo,B\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := logger.Discard()
	session := app.NewSession("")
	syncer := app.NewSyncer(app.Deps{Config: cfg, Session: session, Fetcher: blockingFetcher{}, Logger: log})
	runs := app.NewRuns(syncer, log)

	srv := httptest.NewServer(NewRouter(NewHandler(runs, session, log)))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runs.Shutdown(ctx)
	})

	return &testServer{srv: srv, runs: runs, session: session, csvPath: csvPath}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func startBody(source string) string {
	b, _ := json.Marshal(dto.StartRunRequest{Source: source})
	return string(b)
}

func TestRunLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/runs", startBody(ts.csvPath))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /api/runs = %d", resp.StatusCode)
	}
	run := decodeBody[dto.RunResponse](t, resp)
	if run.ID == "" || run.Status != "running" || run.Total != 2 || run.Playlist != "Mix" {
		t.Fatalf("unexpected run: %+v", run)
	}

	conflict := ts.do(t, http.MethodPost, "/api/runs", startBody(ts.csvPath))
	if conflict.StatusCode != http.StatusConflict {
		t.Errorf("second POST = %d, want 409", conflict.StatusCode)
	}

	got := ts.do(t, http.MethodGet, "/api/runs/"+run.ID, "")
	if got.StatusCode != http.StatusOK {
		t.Fatalf("GET run = %d", got.StatusCode)
	}

	cancel := ts.do(t, http.MethodPost, "/api/runs/"+run.ID+"/cancel", "")
	if cancel.StatusCode != http.StatusAccepted {
		t.Fatalf("cancel = %d", cancel.StatusCode)
	}

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if _, err := ts.runs.Wait(ctx, run.ID); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	final := decodeBody[dto.RunResponse](t, ts.do(t, http.MethodGet, "/api/runs/"+run.ID, ""))
	if final.Status != "cancelled" || final.Cancelled != 2 || len(final.Results) != 2 {
		t.Errorf("unexpected final run: %+v", final)
	}
	if final.FinishedAt == "" {
		t.Error("finished_at should be set")
	}

	list := decodeBody[[]dto.RunResponse](t, ts.do(t, http.MethodGet, "/api/runs?limit=5", ""))
	if len(list) != 1 || list[0].ID != run.ID || list[0].Results != nil {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestStartRun_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"unknown field", `{"src":"x"}`, http.StatusBadRequest},
		{"missing source", `{"source":"  "}`, http.StatusBadRequest},
		{"missing csv", startBody(filepath.Join(t.TempDir(), "nope.csv")), http.StatusBadRequest},
		{"unsupported link", startBody("https://example.com/list"), http.StatusBadRequest},
		{"spotify without token", startBody("spotify:playlist:abc"), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/api/runs", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			body := decodeBody[dto.ErrorResponse](t, resp)
			if body.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestRunNotFound(t *testing.T) {
	ts := newTestServer(t)

	if resp := ts.do(t, http.MethodGet, "/api/runs/missing", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET = %d, want 404", resp.StatusCode)
	}
	if resp := ts.do(t, http.MethodPost, "/api/runs/missing/cancel", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("cancel = %d, want 404", resp.StatusCode)
	}
}

func TestListRuns_BadLimit(t *testing.T) {
	ts := newTestServer(t)
	if resp := ts.do(t, http.MethodGet, "/api/runs?limit=0", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSetToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/api/session/token", `{"token":"abc"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if ts.session.Token() != "abc" {
		t.Errorf("token = %q", ts.session.Token())
	}

	if resp := ts.do(t, http.MethodPut, "/api/session/token", `{"token":""}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty token status = %d, want 400", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
}
