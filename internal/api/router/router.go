package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hostwise/whatsapp-concierge/internal/http/handlers"
	httpmiddleware "github.com/hostwise/whatsapp-concierge/internal/http/middleware"
	"github.com/hostwise/whatsapp-concierge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger               *logging.Logger
	WebhookHandler       *handlers.WhatsAppWebhookHandler
	SetupHandler         *handlers.AdminSetupHandler
	ConversationsHandler *handlers.AdminConversationsHandler
	AdminAuthSecret      string
	MetricsHandler       http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.WebhookHandler != nil {
			public.Get("/webhooks/whatsapp", cfg.WebhookHandler.HandleVerify)
			public.Post("/webhooks/whatsapp", cfg.WebhookHandler.HandleDelivery)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin endpoints behind JWT auth
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.SetupHandler != nil {
				admin.Post("/accounts", cfg.SetupHandler.RegisterAccount)
				admin.Put("/accounts/{accountID}/status", cfg.SetupHandler.UpdateAccountStatus)
				admin.Put("/accounts/{accountID}/auto-respond", cfg.SetupHandler.SetAutoRespond)
				admin.Delete("/accounts/{accountID}/property-link", cfg.SetupHandler.UnlinkProperty)
				admin.Post("/properties", cfg.SetupHandler.CreateProperty)
				admin.Post("/property-links", cfg.SetupHandler.LinkProperty)
			}
			if cfg.ConversationsHandler != nil {
				admin.Get("/conversations", cfg.ConversationsHandler.ListConversations)
				admin.Get("/conversations/{conversationID}/messages", cfg.ConversationsHandler.ListMessages)
				admin.Post("/conversations/{conversationID}/messages", cfg.ConversationsHandler.SendMessage)
				admin.Post("/conversations/{conversationID}/ai-preview", cfg.ConversationsHandler.PreviewAIResponse)
				admin.Get("/activity", cfg.ConversationsHandler.Activity)
			}
		})
	}

	return r
}
