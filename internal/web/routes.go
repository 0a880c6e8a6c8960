package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

func (s *Server) setupRoutes() {
	dashboardHandler := handlers.NewDashboardHandler(s.deps.Reporter, s.logger)
	studentsHandler := handlers.NewStudentsHandler(s.deps.Students, s.deps.Enroller, s.logger)
	streamHandler := handlers.NewStreamHandler(s.deps.Stream, s.logger)

	// Live feed stays open for as long as the client watches.
	s.router.Get("/video_feed", streamHandler.VideoFeed)

	s.router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(apiTimeout))

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/health", handlers.HealthCheck)

			r.Get("/dashboard", dashboardHandler.Dashboard)
			r.Get("/stats", dashboardHandler.Stats)
			r.Get("/attendance/export", dashboardHandler.Export)

			r.Get("/students", studentsHandler.List)
			r.Post("/students", studentsHandler.Create)

			r.Get("/stream/status", streamHandler.Status)
		})

		r.With(middleware.SecurityHeaders()).Get("/*", s.serveStatic)
	})
}

// serveStatic serves the embedded dashboard.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	f, err := static.GetFileSystem().Open(path)
	if err != nil {
		if strings.HasPrefix(path, "/assets/") || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}
		// Unknown pages fall back to the dashboard.
		f, err = static.GetFileSystem().Open("/index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		path = "/index.html"
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(path, ".html"):
		contentType = "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		contentType = "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		contentType = "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".svg"):
		contentType = "image/svg+xml"
	case strings.HasSuffix(path, ".ico"):
		contentType = "image/x-icon"
	}
	w.Header().Set("Content-Type", contentType)
	if strings.HasPrefix(path, "/assets/") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}
