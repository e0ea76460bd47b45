package adminserver

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mnohosten/pagecache/pkg/buffer"
	"github.com/mnohosten/pagecache/pkg/config"
	"github.com/mnohosten/pagecache/pkg/pagestore"
	"github.com/mnohosten/pagecache/pkg/scheduler"
)

func newTestServer(t *testing.T) (*Server, *buffer.Pool) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := pagestore.NewDiskManager(path, pagestore.DefaultCodecConfig())
	if err != nil {
		t.Fatalf("new disk manager: %v", err)
	}
	sched := scheduler.New(dm, scheduler.DefaultConfig())
	t.Cleanup(func() {
		sched.Shutdown()
		dm.Close()
	})

	pool := buffer.New(buffer.Config{PoolSize: 3, K: 2}, sched, dm)
	cfg := config.DefaultConfig()
	cfg.PoolSize = 3
	return New(cfg, pool, dm), pool
}

func TestHandleStatsReturnsJSON(t *testing.T) {
	srv, pool := newTestServer(t)
	pageID, _, err := pool.NewPage()
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	pool.UnpinPage(pageID, false)

	req := httptest.NewRequest("GET", "/stats", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp statsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Pool.PoolSize != 3 {
		t.Errorf("expected pool size 3, got %d", resp.Pool.PoolSize)
	}
	if resp.Pool.Resident != 1 {
		t.Errorf("expected 1 resident page, got %d", resp.Pool.Resident)
	}
}

func TestHandleMetricsReturnsPrometheusText(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain content type, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "# TYPE pagecache_buffer_pool_size gauge") {
		t.Errorf("expected prometheus-format output, got: %s", rr.Body.String())
	}
}

func TestEventHubBroadcastsFetchMiss(t *testing.T) {
	srv, pool := newTestServer(t)

	ch := make(chan Event, 1)
	srv.hub.mu.Lock()
	srv.hub.clients["test"] = ch
	srv.hub.mu.Unlock()

	pageID, _, err := pool.NewPage()
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	pool.UnpinPage(pageID, false)
	pool.DeletePage(pageID)

	// The page's frame was returned to the free list by DeletePage, so
	// fetching it again is a cold miss (it reads back zero-filled,
	// since the disk manager dropped the directory entry).
	if _, err := pool.FetchPage(pageID); err != nil {
		t.Fatalf("fetch after delete: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != "fetch_miss" {
			t.Errorf("expected fetch_miss event, got %q", ev.Type)
		}
	default:
		t.Fatal("expected a broadcast event on fetch miss")
	}
}
