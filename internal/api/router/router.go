// Package router assembles the HTTP surface: the Twilio webhook, the
// dashboard API, the live websocket feed, and operational endpoints.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wavecare-ai/wavecare-voice/internal/appointments"
	"github.com/wavecare-ai/wavecare-voice/internal/calls"
	"github.com/wavecare-ai/wavecare-voice/internal/doctors"
	"github.com/wavecare-ai/wavecare-voice/internal/http/handlers"
	httpmiddleware "github.com/wavecare-ai/wavecare-voice/internal/http/middleware"
	"github.com/wavecare-ai/wavecare-voice/internal/livefeed"
	"github.com/wavecare-ai/wavecare-voice/internal/stats"
	"github.com/wavecare-ai/wavecare-voice/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	VoiceWebhook        *handlers.TwilioVoiceHandler
	AuthHandler         *handlers.AuthHandler
	CallsHandler        *calls.Handler
	DoctorsHandler      *doctors.Handler
	AppointmentsHandler *appointments.Handler
	StatsHandler        *stats.Handler
	LiveFeed            *livefeed.Hub
	MetricsHandler      http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: webhooks, health checks, metrics, the live feed.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.VoiceWebhook != nil {
			public.Post("/webhooks/twilio/voice", cfg.VoiceWebhook.ServeHTTP)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.LiveFeed != nil {
			public.Get("/ws/live", cfg.LiveFeed.HandleWebSocket)
		}
		if cfg.AuthHandler != nil {
			public.Post("/api/v1/auth/login", cfg.AuthHandler.Login)
		}
	})

	// Dashboard API, admin JWT required.
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

		if cfg.CallsHandler != nil {
			api.Get("/calls", cfg.CallsHandler.List)
			api.Get("/calls/live", cfg.CallsHandler.Live)
		}
		if cfg.DoctorsHandler != nil {
			api.Route("/doctors", func(r chi.Router) {
				r.Get("/", cfg.DoctorsHandler.List)
				r.Post("/", cfg.DoctorsHandler.Create)
				r.Get("/{id}", cfg.DoctorsHandler.Get)
				r.Put("/{id}", cfg.DoctorsHandler.Update)
				r.Delete("/{id}", cfg.DoctorsHandler.Delete)
			})
		}
		if cfg.AppointmentsHandler != nil {
			api.Route("/appointments", func(r chi.Router) {
				r.Get("/", cfg.AppointmentsHandler.List)
				r.Post("/", cfg.AppointmentsHandler.Create)
				r.Get("/{id}", cfg.AppointmentsHandler.Get)
				r.Patch("/{id}/status", cfg.AppointmentsHandler.UpdateStatus)
				r.Delete("/{id}", cfg.AppointmentsHandler.Delete)
			})
		}
		if cfg.StatsHandler != nil {
			api.Get("/stats", cfg.StatsHandler.Summary)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "wavecare-voice"})
}
