package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"linkbot/internal/catalog"
	logx "linkbot/pkg/logx"
)

type fakeStore struct {
	mu      sync.Mutex
	cats    []catalog.Category
	listErr error
	pingErr error
	links   map[int64]catalog.Link
	clicks  map[int64]int
	users   []*int64
}

func (f *fakeStore) ListCategories(context.Context, bool) ([]catalog.Category, error) {
	return f.cats, f.listErr
}

func (f *fakeStore) GetLink(_ context.Context, id int64) (catalog.Link, error) {
	l, ok := f.links[id]
	if !ok {
		return catalog.Link{}, catalog.ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) IncrementClicks(_ context.Context, id int64, user *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clicks == nil {
		f.clicks = map[int64]int{}
	}
	f.clicks[id]++
	f.users = append(f.users, user)
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func newTestServer(t *testing.T, cfg Config, st Store) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(cfg, st, logx.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, hdr map[string]string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCategories(t *testing.T) {
	st := &fakeStore{cats: []catalog.Category{
		{ID: 3, Name: "News", Emoji: "📰", Position: 1, Active: true, Links: 4},
	}}
	srv := newTestServer(t, Config{}, st)

	resp := get(t, srv.URL+"/api/categories", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["name"] != "News" || got[0]["emoji"] != "📰" || got[0]["id"] != float64(3) {
		t.Fatalf("body = %v", got)
	}
	if len(got[0]) != 3 {
		t.Fatalf("only id, name and emoji should be exposed: %v", got[0])
	}
}

func TestCategoriesEmptyListIsArray(t *testing.T) {
	srv := newTestServer(t, Config{}, &fakeStore{})
	resp := get(t, srv.URL+"/api/categories", nil)
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("empty list = %s", raw)
	}
}

func TestCategoriesError(t *testing.T) {
	srv := newTestServer(t, Config{}, &fakeStore{listErr: errors.New("db locked")})
	resp := get(t, srv.URL+"/api/categories", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["error"] != "db locked" {
		t.Fatalf("body = %v", body)
	}
}

func TestHealthAndIndex(t *testing.T) {
	st := &fakeStore{}
	srv := newTestServer(t, Config{Version: "1.2.3"}, st)

	resp := get(t, srv.URL+"/api/health", nil)
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}

	down := newTestServer(t, Config{}, &fakeStore{pingErr: errors.New("closed")})
	resp = get(t, down.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d", resp.StatusCode)
	}

	resp = get(t, srv.URL+"/", nil)
	body = nil
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["version"] != "1.2.3" {
		t.Fatalf("index = %v", body)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, Config{CORSOrigins: []string{"https://app.example.org"}}, &fakeStore{})

	resp := get(t, srv.URL+"/api/categories", map[string]string{"Origin": "https://app.example.org"})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.org" {
		t.Fatalf("allowed origin header = %q", got)
	}
	resp = get(t, srv.URL+"/api/categories", map[string]string{"Origin": "https://evil.example"})
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin got %q", got)
	}

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/categories", nil)
	pre, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	_ = pre.Body.Close()
	if pre.StatusCode != http.StatusNoContent || !strings.Contains(pre.Header.Get("Access-Control-Allow-Headers"), "X-Telegram-Init-Data") {
		t.Fatalf("preflight = %d %v", pre.StatusCode, pre.Header)
	}
}

func TestRedirectCountsClicks(t *testing.T) {
	st := &fakeStore{links: map[int64]catalog.Link{
		1: {ID: 1, URL: "https://go.dev", Status: catalog.StatusApproved},
		2: {ID: 2, URL: "https://pending.example", Status: catalog.StatusPending},
	}}
	srv := newTestServer(t, Config{}, st)

	resp := get(t, srv.URL+"/r/1?u=42", nil)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "https://go.dev" {
		t.Fatalf("redirect = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	st.mu.Lock()
	clicks, users := st.clicks[1], st.users
	st.mu.Unlock()
	if clicks != 1 || users[0] == nil || *users[0] != 42 {
		t.Fatalf("click not recorded: %d", clicks)
	}

	for path, want := range map[string]int{"/r/2": 404, "/r/9": 404, "/r/abc": 400} {
		if resp := get(t, srv.URL+path, nil); resp.StatusCode != want {
			t.Fatalf("%s = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{RatePerSec: 1}, &fakeStore{})
	limited := false
	for range 5 {
		if get(t, srv.URL+"/api/health", nil).StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("expected 429 after the burst")
	}
}

func TestRateLimitIgnoresForwardedHeaders(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		wantLimit  bool
	}{
		{name: "direct peer", wantLimit: true},
		{name: "trusted proxy", trustProxy: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Config{RatePerSec: 1, TrustProxy: tt.trustProxy}, &fakeStore{}, logx.Nop()).Handler()
			limited := 0
			for i := range 20 {
				req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
				req.RemoteAddr = "203.0.113.9:40000"
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				if rec.Code == http.StatusTooManyRequests {
					limited++
				}
			}
			if got := limited > 0; got != tt.wantLimit {
				t.Fatalf("429 responses = %d, want limiting %v", limited, tt.wantLimit)
			}
		})
	}
}

func TestStaticApp(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "submit-link.html"), []byte("<form id=form></form>"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	srv := newTestServer(t, Config{StaticDir: dir}, &fakeStore{})
	resp := get(t, srv.URL+"/app/submit-link.html", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("static status = %d", resp.StatusCode)
	}
}

func TestPprofRequiresToken(t *testing.T) {
	srv := newTestServer(t, Config{Pprof: true, PprofToken: "s3cret"}, &fakeStore{})
	if resp := get(t, srv.URL+"/debug/pprof/", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("without token = %d", resp.StatusCode)
	}
	if resp := get(t, srv.URL+"/debug/pprof/?token=s3cret", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("with token = %d", resp.StatusCode)
	}
}

func TestServiceStartStop(t *testing.T) {
	svc := New(Config{Addr: "127.0.0.1:0"}, &fakeStore{}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for svc.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if svc.Addr() == "" {
		t.Fatalf("server did not bind")
	}
	resp := get(t, "http://"+svc.Addr()+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}

	sctx, scancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer scancel()
	if err := svc.Stop(sctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
