// Package adminserver exposes a pagecached instance's buffer pool
// over HTTP: JSON stats, Prometheus text metrics, and a websocket feed
// of fetch-miss/evict/flush events, in the shape of the teacher's
// pkg/server package.
package adminserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mnohosten/pagecache/pkg/buffer"
	"github.com/mnohosten/pagecache/pkg/config"
	"github.com/mnohosten/pagecache/pkg/metrics"
	"github.com/mnohosten/pagecache/pkg/pagestore"
)

// Server is the admin HTTP surface in front of a running buffer pool.
type Server struct {
	cfg       *config.Config
	pool      *buffer.Pool
	disk      *pagestore.DiskManager
	hub       *EventHub
	exporter  *metrics.Exporter
	router    *chi.Mux
	httpSrv   *http.Server
	startTime time.Time
}

// New wires a router around pool/disk and installs an EventHub as the
// pool's listener.
func New(cfg *config.Config, pool *buffer.Pool, disk *pagestore.DiskManager) *Server {
	hub := NewEventHub()
	pool.SetEventListener(hub)

	s := &Server{
		cfg:       cfg,
		pool:      pool,
		disk:      disk,
		hub:       hub,
		exporter:  metrics.NewExporter(pool, disk),
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/stats", s.handleStats)
	s.router.Get("/metrics", s.handleMetrics)
	s.router.Get("/ws", s.hub.ServeWS)

	s.httpSrv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

type statsResponse struct {
	UptimeSeconds float64         `json:"uptime_seconds"`
	Pool          buffer.Stats    `json:"pool"`
	Disk          pagestore.Stats `json:"disk"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Pool:          s.pool.Stats(),
		Disk:          s.disk.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		fmt.Printf("adminserver: error encoding stats response: %v\n", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := s.exporter.WriteMetrics(w); err != nil {
		http.Error(w, fmt.Sprintf("error writing metrics: %v", err), http.StatusInternalServerError)
	}
}

// Start runs the HTTP server and blocks until it exits, either
// because of a server error or an interrupt/SIGTERM signal, in which
// case it shuts down gracefully before returning.
func (s *Server) Start() error {
	fmt.Printf("🚀 pagecached admin server starting on %s\n", s.cfg.ListenAddr)
	fmt.Printf("📁 data dir: %s\n", s.cfg.DataDir)
	fmt.Printf("💾 buffer pool size: %d frames\n", s.cfg.PoolSize)
	fmt.Printf("🔌 websocket event feed: ws://%s/ws\n", s.cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		fmt.Printf("\n⚠️  received signal: %v\n", sig)
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	fmt.Println("🛑 shutting down admin server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	fmt.Println("✅ admin server shutdown complete")
	return nil
}
