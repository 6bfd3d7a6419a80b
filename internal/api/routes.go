package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"linkbot/internal/catalog"
	logx "linkbot/pkg/logx"
)

func (s *Service) routes(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLog(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors(cfg.CORSOrigins))
	if cfg.RatePerSec > 0 {
		r.Use(newClientLimiter(cfg.RatePerSec).middleware)
	}

	r.Get("/", s.handleIndex(cfg.Version))
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/categories", s.handleCategories)
	})
	r.Get("/r/{id}", s.handleRedirect)

	if dir := strings.TrimSpace(cfg.StaticDir); dir != "" {
		fs := http.StripPrefix("/app/", http.FileServer(http.Dir(dir)))
		r.Get("/app", http.RedirectHandler("/app/", http.StatusMovedPermanently).ServeHTTP)
		r.Get("/app/*", fs.ServeHTTP)
	}
	if cfg.Pprof {
		r.With(bearerOrQueryToken(cfg.PprofToken)).Mount("/debug", middleware.Profiler())
	}
	return r
}

type categoryDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Service) handleIndex(version string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	body := map[string]any{
		"message":   "Link catalog API",
		"version":   version,
		"endpoints": []string{"/api/categories", "/api/health", "/r/{id}"},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{"status": "ok"}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn("health: storage ping failed", logx.Err(err))
		body["status"] = "degraded"
		body["error"] = "storage unavailable"
		status = http.StatusServiceUnavailable
	}
	if r.URL.Query().Get("verbose") == "1" && s.health != nil {
		body["runtime"] = s.health()
	}
	writeJSON(w, status, body)
}

func (s *Service) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories(r.Context(), true)
	if err != nil {
		s.log.Error("list categories failed", logx.Err(err), logx.String("req_id", middleware.GetReqID(r.Context())))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryDTO{ID: c.ID, Name: c.Name, Emoji: c.Emoji})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRedirect counts a click and redirects to an approved link. ?u=<user id>
// attributes the click.
func (s *Service) handleRedirect(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid link id")
		return
	}
	l, err := s.store.GetLink(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) || (err == nil && l.Status != catalog.StatusApproved) {
		writeError(w, http.StatusNotFound, "link not found")
		return
	}
	if err != nil {
		s.log.Error("get link failed", logx.LinkID(id), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var user *int64
	if u, err := strconv.ParseInt(r.URL.Query().Get("u"), 10, 64); err == nil && u > 0 {
		user = &u
	}
	if err := s.store.IncrementClicks(r.Context(), id, user); err != nil {
		s.log.Warn("click not recorded", logx.LinkID(id), logx.Err(err))
	}
	http.Redirect(w, r, l.URL, http.StatusFound)
}
