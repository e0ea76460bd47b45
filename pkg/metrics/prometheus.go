// Package metrics exports buffer pool and disk manager counters in
// Prometheus text exposition format, in the shape of the teacher's
// PrometheusExporter: one small writeGauge/writeCounter helper pair,
// called once per metric rather than built on a client library.
package metrics

import (
	"fmt"
	"io"

	"github.com/mnohosten/pagecache/pkg/buffer"
	"github.com/mnohosten/pagecache/pkg/pagestore"
)

// Exporter writes a buffer pool's and a disk manager's stats as
// Prometheus text metrics.
type Exporter struct {
	pool      *buffer.Pool
	disk      *pagestore.DiskManager
	namespace string
}

// NewExporter creates an exporter under the "pagecache" namespace.
func NewExporter(pool *buffer.Pool, disk *pagestore.DiskManager) *Exporter {
	return &Exporter{pool: pool, disk: disk, namespace: "pagecache"}
}

// SetNamespace overrides the default "pagecache" metric name prefix.
func (e *Exporter) SetNamespace(namespace string) {
	e.namespace = namespace
}

// WriteMetrics writes every metric in Prometheus text format to w.
func (e *Exporter) WriteMetrics(w io.Writer) error {
	ps := e.pool.Stats()

	if err := e.writeGauge(w, "buffer_pool_size", "Number of frames in the buffer pool", float64(ps.PoolSize)); err != nil {
		return err
	}
	if err := e.writeGauge(w, "buffer_pool_resident_pages", "Number of pages currently resident in the pool", float64(ps.Resident)); err != nil {
		return err
	}
	if err := e.writeGauge(w, "buffer_pool_free_frames", "Number of frames on the free list", float64(ps.Free)); err != nil {
		return err
	}
	if err := e.writeGauge(w, "buffer_pool_pinned_frames", "Number of frames with a nonzero pin count", float64(ps.Pinned)); err != nil {
		return err
	}
	if err := e.writeGauge(w, "buffer_pool_dirty_frames", "Number of frames with unwritten changes", float64(ps.Dirty)); err != nil {
		return err
	}
	if err := e.writeGauge(w, "buffer_pool_evictable_frames", "Number of frames the replacer may evict", float64(ps.Evictable)); err != nil {
		return err
	}
	if err := e.writeCounter(w, "buffer_pool_hits_total", "Total FetchPage calls served from a resident frame", uint64(ps.Hits)); err != nil {
		return err
	}
	if err := e.writeCounter(w, "buffer_pool_misses_total", "Total FetchPage calls that required a disk read", uint64(ps.Misses)); err != nil {
		return err
	}

	ds := e.disk.Stats()
	if err := e.writeGauge(w, "disk_next_page_id", "Next page id the allocator will hand out", float64(ds.NextPageID)); err != nil {
		return err
	}
	if err := e.writeGauge(w, "disk_live_records", "Number of page ids with a reachable on-disk record", float64(ds.LiveRecords)); err != nil {
		return err
	}
	if err := e.writeCounter(w, "disk_freed_pages_total", "Total DeallocatePage calls", uint64(ds.FreedPages)); err != nil {
		return err
	}
	if err := e.writeCounter(w, "disk_reads_total", "Total page reads served from disk", uint64(ds.TotalReads)); err != nil {
		return err
	}
	if err := e.writeCounter(w, "disk_writes_total", "Total page writes committed to disk", uint64(ds.TotalWrites)); err != nil {
		return err
	}

	return nil
}

func (e *Exporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := e.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (e *Exporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := e.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n",
		metricName, help, metricName, metricName, value)
	return err
}
