package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reggaepotato22/krugerr-brendt/internal/analytics"
	"github.com/reggaepotato22/krugerr-brendt/internal/currency"
	"github.com/reggaepotato22/krugerr-brendt/internal/live"
	"github.com/reggaepotato22/krugerr-brendt/internal/service"
)

// Auth configures admin login and token checks.
type Auth struct {
	Secret        string
	TokenTTL      time.Duration
	AdminPassword string
}

// RateLimit bounds public write endpoints per client IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Deps are the collaborators behind the HTTP API.
type Deps struct {
	Catalog     *service.CatalogService
	Leads       *service.LeadService
	Chats       *service.ChatService
	Uploads     *service.UploadService
	Preferences *analytics.PreferenceStore
	Rates       *currency.RateCache
	Hub         *live.Hub
	Events      *live.Broadcaster
	Auth        Auth
	RateLimit   RateLimit

	// AllowedOrigins lists the browser origins allowed to call the API
	// with credentials. Patterns such as "https://*.example.com" are allowed.
	AllowedOrigins []string
}

type Server struct {
	deps   Deps
	router chi.Router
	logger *slog.Logger
	now    func() time.Time
}

func NewServer(deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
		logger: logger,
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router

	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(securityHeaders)
	r.Use(chimiddleware.Recoverer)
	// Without configured origins the API is same-origin only.
	if len(s.deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.deps.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", visitorHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/images/{key}", s.handleGetImage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/properties", s.handleListProperties)
		r.Get("/properties/{id}", s.handleGetProperty)
		r.Get("/projects", s.handleListProjects)
		r.Get("/projects/{id}", s.handleGetProject)
		r.Get("/rates", s.handleRates)
		r.Get("/preferences", s.handleGetPreferences)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(s.deps.RateLimit.Requests, s.deps.RateLimit.Window))
			r.Put("/preferences", s.handleSetPreferences)
			r.Post("/inquiries", s.handleSubmitInquiry)
			r.Post("/chat", s.handleChat)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(rateLimit(s.deps.RateLimit.Requests, s.deps.RateLimit.Window)).Post("/login", s.handleLogin)
			r.With(s.requireAdmin(true)).Get("/live", live.Handler(s.deps.Hub, s.logger))

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin(false))

				r.Get("/properties", s.handleAdminListProperties)
				r.Post("/properties", s.handleCreateProperty)
				r.Put("/properties/{id}", s.handleUpdateProperty)
				r.Delete("/properties/{id}", s.handleDeleteProperty)

				r.Post("/projects", s.handleCreateProject)
				r.Put("/projects/{id}", s.handleUpdateProject)
				r.Delete("/projects/{id}", s.handleDeleteProject)

				r.Get("/inquiries", s.handleListInquiries)
				r.Get("/inquiries/{id}", s.handleGetInquiry)
				r.Put("/inquiries/{id}", s.handleUpdateInquiry)
				r.Delete("/inquiries/{id}", s.handleDeleteInquiry)

				r.Get("/chats", s.handleListChats)
				r.Get("/chats/{id}", s.handleGetChat)
				r.Post("/chats/{id}/archive", s.handleArchiveChat)
				r.Delete("/chats/{id}", s.handleDeleteChat)

				r.Get("/images", s.handleListImages)
				r.Post("/images", s.handleUploadImage)
				r.Delete("/images/{key}", s.handleDeleteImage)
			})
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer wraps s for addr. The caller owns ListenAndServe and Shutdown.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
