package metrics

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mnohosten/pagecache/pkg/buffer"
	"github.com/mnohosten/pagecache/pkg/pagestore"
	"github.com/mnohosten/pagecache/pkg/scheduler"
)

func newTestExporter(t *testing.T) (*Exporter, *buffer.Pool) {
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
	return NewExporter(pool, dm), pool
}

func TestWriteMetricsIncludesPoolAndDiskMetrics(t *testing.T) {
	exporter, pool := newTestExporter(t)

	pageID, _, err := pool.NewPage()
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	pool.UnpinPage(pageID, false)
	pool.FetchPage(pageID)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"# TYPE pagecache_buffer_pool_size gauge",
		"pagecache_buffer_pool_size 3",
		"# TYPE pagecache_buffer_pool_hits_total counter",
		"pagecache_buffer_pool_hits_total 1",
		"# TYPE pagecache_disk_writes_total counter",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestSetNamespaceChangesMetricPrefix(t *testing.T) {
	exporter, _ := newTestExporter(t)
	exporter.SetNamespace("custom")

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	if !strings.Contains(buf.String(), "custom_buffer_pool_size") {
		t.Fatal("expected custom namespace prefix in output")
	}
	if strings.Contains(buf.String(), "pagecache_buffer_pool_size") {
		t.Fatal("did not expect default namespace prefix after SetNamespace")
	}
}
