// Package scheduler implements the asynchronous disk request queue
// consumed by the buffer pool manager: callers submit a read or write
// job and are handed a future they await for completion. The
// scheduler owns the worker goroutines that actually touch disk; the
// buffer pool never calls into DiskIO directly.
//
// The shape is the teacher's WorkerPool
// (pkg/database/worker_pool.go) generalized from a fire-and-forget
// Task to a Job that reports its outcome through a one-shot future,
// matching spec.md section 6's "{is_write, buffer, page_id, promise}"
// job description.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/mnohosten/pagecache/pkg/pagestore"
)

// DiskIO is the narrow disk interface the scheduler drives. It is
// satisfied by *pagestore.DiskManager.
type DiskIO interface {
	ReadPage(pageID pagestore.PageID, data []byte) error
	WritePage(pageID pagestore.PageID, data []byte) error
}

// Job describes a single scheduled disk operation. Buffer is read
// from (for a write) or written into (for a read) in place by the
// worker that services the job; the caller must not touch Buffer
// until the returned Future resolves.
type Job struct {
	IsWrite bool
	PageID  pagestore.PageID
	Buffer  []byte

	result chan error
}

// Future is a one-shot handle to a job's outcome. Await blocks until
// the job completes and may be called at most once.
type Future struct {
	ch <-chan error
}

// Await blocks until the scheduled job completes and returns its
// error, if any.
func (f Future) Await() error {
	return <-f.ch
}

// Scheduler runs a fixed pool of worker goroutines draining a job
// queue against a DiskIO backend.
type Scheduler struct {
	disk   DiskIO
	jobs   chan *Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config controls worker pool sizing, mirroring
// database.WorkerPoolConfig's shape.
type Config struct {
	NumWorkers int
	QueueSize  int
}

// DefaultConfig returns a sensible single-process default.
func DefaultConfig() Config {
	return Config{NumWorkers: 4, QueueSize: 256}
}

// New starts a scheduler backed by disk with the given worker
// configuration.
func New(disk DiskIO, cfg Config) *Scheduler {
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		disk:   disk,
		jobs:   make(chan *Job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < cfg.NumWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			job.result <- s.execute(job)
		}
	}
}

func (s *Scheduler) execute(job *Job) error {
	if job.IsWrite {
		if err := s.disk.WritePage(job.PageID, job.Buffer); err != nil {
			return fmt.Errorf("scheduler: write page %d: %w", job.PageID, err)
		}
		return nil
	}
	if err := s.disk.ReadPage(job.PageID, job.Buffer); err != nil {
		return fmt.Errorf("scheduler: read page %d: %w", job.PageID, err)
	}
	return nil
}

// Schedule enqueues job and returns a future for its completion. The
// buffer pool always awaits the returned future before proceeding,
// per spec.md section 6 and section 5's "no cancellation at this
// layer".
func (s *Scheduler) Schedule(job *Job) Future {
	job.result = make(chan error, 1)
	if s.ctx.Err() != nil {
		job.result <- fmt.Errorf("scheduler: shut down")
		return Future{ch: job.result}
	}
	select {
	case s.jobs <- job:
	case <-s.ctx.Done():
		job.result <- fmt.Errorf("scheduler: shut down")
	}
	return Future{ch: job.result}
}

// Shutdown stops accepting new work and waits for in-flight jobs to
// drain.
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.wg.Wait()
}
