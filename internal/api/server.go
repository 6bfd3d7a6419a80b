// Package api serves the active category list to the link form, counts link
// clicks through a redirect and hosts the Mini App pages.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"linkbot/internal/catalog"
	rtsup "linkbot/internal/runtime/supervisor"
	logx "linkbot/pkg/logx"
)

// Store is the slice of the catalog the API reads.
type Store interface {
	ListCategories(ctx context.Context, onlyActive bool) ([]catalog.Category, error)
	GetLink(ctx context.Context, id int64) (catalog.Link, error)
	IncrementClicks(ctx context.Context, linkID int64, userID *int64) error
	Ping(ctx context.Context) error
}

type Config struct {
	Addr         string
	CORSOrigins  []string
	RatePerSec   int
	// TrustProxy applies forwarded client addresses. Without it the rate
	// limit keys on the TCP peer.
	TrustProxy   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	StaticDir    string
	Version      string

	Pprof      bool
	PprofToken string
}

// HealthFunc adds runtime details to /api/health?verbose=1.
type HealthFunc func() any

type Service struct {
	log    logx.Logger
	store  Store
	health HealthFunc

	mu   sync.Mutex
	cfg  Config
	ln   net.Listener
	srv  *http.Server
	sup  *rtsup.Supervisor
	addr string
}

func New(cfg Config, store Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = ":8080"
	}
	return &Service{cfg: cfg, store: store, log: log}
}

func (s *Service) SetHealth(fn HealthFunc) { s.health = fn }

// Handler builds the router for the current config.
func (s *Service) Handler() http.Handler {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return s.routes(cfg)
}

// Addr returns the bound address once the listener is up.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start listens in the background. Listen errors are retried by the
// supervisor so a busy port does not take the bot down.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.sup != nil {
		s.mu.Unlock()
		return
	}
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	sup := s.sup
	s.mu.Unlock()

	sup.GoRestart("http.serve", s.serveOnce,
		rtsup.WithPublishFirstError(true),
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)
}

// Stop shuts the server down gracefully, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, sup := s.srv, s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	// Cancel first so the serve loop treats the closed server as a clean exit.
	sup.Cancel()
	var err error
	if srv != nil {
		if err = srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
		}
	}
	if werr := sup.Wait(ctx); err == nil && errors.Is(werr, context.DeadlineExceeded) {
		err = werr
	}
	s.log.Info("api stopped")
	return err
}

// Supervisor exposes the serve loop for health output.
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

func (s *Service) serveOnce(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if cfg.Pprof && cfg.PprofToken == "" && !isLoopbackAddr(cfg.Addr) {
		s.log.Warn("pprof disabled: non-loopback addr requires api.pprof_token", logx.String("addr", cfg.Addr))
		cfg.Pprof = false
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.log.Error("api listen failed", logx.String("addr", cfg.Addr), logx.Err(err))
		return err
	}
	srv := &http.Server{
		Handler:           s.routes(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.ln, s.srv, s.addr = ln, srv, ln.Addr().String()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("api started", logx.String("addr", ln.Addr().String()), logx.Bool("static", cfg.StaticDir != ""))
	err = srv.Serve(ln)

	s.mu.Lock()
	if s.srv == srv {
		s.srv, s.ln = nil, nil
	}
	s.mu.Unlock()

	if ctx.Err() != nil {
		return nil
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("api server exited unexpectedly")
	}
	return err
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
