//go:build integration

package e2e_test

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adamwoolhether/asynchttp"
	"github.com/adamwoolhether/asynchttp/effect/future"
	"github.com/adamwoolhether/asynchttp/effect/task"
	"github.com/adamwoolhether/asynchttp/engine"
)

// -------------------------------------------------------------------------
// Types
// -------------------------------------------------------------------------

type user struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

type itemResp struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const downloadContent = "hello, this is test download content!"

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func newTestApp(t *testing.T) string {
	t.Helper()

	mux := http.NewServeMux()
	registerRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv.URL
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /echo", echoHandler)
	mux.HandleFunc("GET /items/{id}/{name}", itemHandler)
	mux.HandleFunc("GET /query", queryHandler)
	mux.HandleFunc("GET /download", downloadHandler)
	mux.HandleFunc("GET /stream", streamHandler)
	mux.HandleFunc("GET /latin1", latin1Handler)
	mux.HandleFunc("GET /agent", agentHandler)
}

func newBackend(t *testing.T, opts ...engine.Option) *asynchttp.Backend {
	t.Helper()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	b, err := asynchttp.New(asynchttp.WithLogger(log), asynchttp.WithEngineOptions(opts...))
	if err != nil {
		t.Fatalf("building backend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	return b
}

func mustParseURL(t *testing.T, base, path string) *url.URL {
	t.Helper()

	u, err := url.Parse(base + path)
	if err != nil {
		t.Fatalf("parsing URL %s%s: %v", base, path, err)
	}

	return u
}

func send[T any](t *testing.T, b *asynchttp.Backend, req asynchttp.Request[T]) asynchttp.Response[T] {
	t.Helper()

	resp, err := asynchttp.Send(b, future.Monad[asynchttp.Response[T]]{}, req).Await(t.Context())
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}

	return resp
}

// -------------------------------------------------------------------------
// Handlers
// -------------------------------------------------------------------------

func echoHandler(w http.ResponseWriter, r *http.Request) {
	var u user
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(u)
}

func itemHandler(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(itemResp{ID: r.PathValue("id"), Name: r.PathValue("name")})
}

func queryHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fmt.Fprintf(w, "%s/%s", q.Get("search"), q.Get("page"))
}

func downloadHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(downloadContent)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(downloadContent))
}

func streamHandler(w http.ResponseWriter, _ *http.Request) {
	flusher := w.(http.Flusher)
	for i := range 5 {
		fmt.Fprintf(w, "event %d\n", i)
		flusher.Flush()
		time.Sleep(10 * time.Millisecond)
	}
}

func latin1Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
	_, _ = w.Write([]byte("gr\xfc\xdfe"))
}

func agentHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(r.UserAgent()))
}

// -------------------------------------------------------------------------
// Tests
// -------------------------------------------------------------------------

func TestE2E_JSONRoundTrip(t *testing.T) {
	baseURL := newTestApp(t)
	b := newBackend(t)

	sent := user{Name: "Alice", Email: "alice@test.com", Age: 30}
	payload, err := json.Marshal(sent)
	if err != nil {
		t.Fatalf("encoding payload: %v", err)
	}

	req, err := asynchttp.NewRequest(t.Context(), asynchttp.MethodPost, mustParseURL(t, baseURL, "/echo"), asynchttp.AsBytes(),
		asynchttp.WithContentType("application/json"),
		asynchttp.WithBody(asynchttp.BytesBody{Bytes: payload}),
	)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	resp := send(t, b, req)
	if resp.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.Code, http.StatusCreated)
	}

	var got user
	if err := json.Unmarshal(resp.Body, &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got != sent {
		t.Errorf("round-trip mismatch:\n  got:  %+v\n  want: %+v", got, sent)
	}
}

func TestE2E_PathParams(t *testing.T) {
	baseURL := newTestApp(t)
	b := newBackend(t)

	req, err := asynchttp.NewRequest(t.Context(), asynchttp.MethodGet, mustParseURL(t, baseURL, "/items/42/widget"), asynchttp.AsBytes())
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	var got itemResp
	if err := json.Unmarshal(send(t, b, req).Body, &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if got.ID != "42" {
		t.Errorf("id = %q, want %q", got.ID, "42")
	}
	if got.Name != "widget" {
		t.Errorf("name = %q, want %q", got.Name, "widget")
	}
}

func TestE2E_QueryParams(t *testing.T) {
	baseURL := newTestApp(t)
	b := newBackend(t)

	base, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parsing base URL: %v", err)
	}

	reqURL := asynchttp.URL(base.Scheme, base.Host, "/query",
		asynchttp.WithQueryStrings(map[string]string{
			"search": "gopher",
			"page":   "3",
		}),
	)

	req, err := asynchttp.NewRequest(t.Context(), asynchttp.MethodGet, reqURL, asynchttp.AsString(""))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if got := send(t, b, req).Body; got != "gopher/3" {
		t.Errorf("body = %q, want %q", got, "gopher/3")
	}
}

func TestE2E_NotFoundIsAResponse(t *testing.T) {
	baseURL := newTestApp(t)
	b := newBackend(t)

	req, err := asynchttp.NewRequest(t.Context(), asynchttp.MethodGet, mustParseURL(t, baseURL, "/missing"), asynchttp.Ignore())
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	resp := send(t, b, req)
	if resp.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.Code, http.StatusNotFound)
	}
	if resp.IsSuccess() {
		t.Error("expected a non-success response")
	}
}

func TestE2E_FileDownload(t *testing.T) {
	baseURL := newTestApp(t)
	b := newBackend(t)

	destPath := filepath.Join(t.TempDir(), "downloaded.bin")
	sum := sha256.Sum256([]byte(downloadContent))

	as := asynchttp.AsFile(destPath, false, asynchttp.WithChecksum(sha256.New(), hex.EncodeToString(sum[:])))
	req, err := asynchttp.NewRequest(t.Context(), asynchttp.MethodGet, mustParseURL(t, baseURL, "/download"), as)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if got := send(t, b, req).Body; got != destPath {
		t.Errorf("path = %q, want %q", got, destPath)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(got) != downloadContent {
		t.Errorf("file content = %q, want %q", string(got), downloadContent)
	}
}

func TestE2E_StreamedBody(t *testing.T) {
	baseURL := newTestApp(t)
	b := newBackend(t)

	req, err := asynchttp.NewRequest(t.Context(), asynchttp.MethodGet, mustParseURL(t, baseURL, "/stream"),
		asynchttp.AsStream[asynchttp.Stream](nil))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	resp := send(t, b, req)

	var lines []string
	for chunk, err := range resp.Body {
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		lines = append(lines, strings.Split(strings.TrimSpace(string(chunk)), "\n")...)
	}

	if len(lines) != 5 || lines[4] != "event 4" {
		t.Errorf("lines = %q, want 5 events", lines)
	}
}

func TestE2E_Charset(t *testing.T) {
	baseURL := newTestApp(t)
	b := newBackend(t)

	req, err := asynchttp.NewRequest(t.Context(), asynchttp.MethodGet, mustParseURL(t, baseURL, "/latin1"), asynchttp.AsString("iso-8859-1"))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if got := send(t, b, req).Body; got != "grüße" {
		t.Errorf("body = %q, want %q", got, "grüße")
	}
}

func TestE2E_ConfiguredEngine(t *testing.T) {
	baseURL := newTestApp(t)

	cfg, err := engine.LoadConfig(strings.NewReader(`
timeout: 5s
user_agent: e2e/1.0
throttle:
  rps: 20
  burst: 1
`))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	b := newBackend(t, engine.WithConfig(cfg))

	req, err := asynchttp.NewRequest(t.Context(), asynchttp.MethodGet, mustParseURL(t, baseURL, "/agent"), asynchttp.AsString(""))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	tk := asynchttp.Send(b, task.Monad[asynchttp.Response[string]]{}, req)

	var agents atomic.Int32
	start := time.Now()

	var g errgroup.Group
	for range 5 {
		g.Go(func() error {
			resp, err := tk.Await(t.Context())
			if err != nil {
				return err
			}
			if resp.Body == "e2e/1.0" {
				agents.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("executing requests: %v", err)
	}

	if n := agents.Load(); n != 5 {
		t.Errorf("user agent seen %d times, want 5", n)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("elapsed = %v, expected throttling to space requests out", elapsed)
	}
}
