package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/convoleads/leadqual/internal/conversation"
	httpmiddleware "github.com/convoleads/leadqual/internal/http/middleware"
	"github.com/convoleads/leadqual/internal/leads"
	"github.com/convoleads/leadqual/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	LeadsHandler        *leads.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.ConversationHandler != nil {
			public.Route("/conversations", func(r chi.Router) {
				r.Post("/message", cfg.ConversationHandler.Message)
			})
		}
	})

	// Admin routes
	r.Route("/admin", func(admin chi.Router) {
		admin.Route("/leads/{leadID}", func(r chi.Router) {
			if cfg.LeadsHandler != nil {
				r.Get("/", cfg.LeadsHandler.GetLead)
				r.Post("/convert", cfg.LeadsHandler.Convert)
			}
			if cfg.ConversationHandler != nil {
				r.Get("/turns", cfg.ConversationHandler.Transcript)
			}
		})
	})

	return r
}
