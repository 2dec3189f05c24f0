package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mealbot/internal/constants"
	"mealbot/internal/database"
	"mealbot/internal/middleware"
	"mealbot/internal/models"
	"mealbot/internal/service"
	"mealbot/pkg/twilio"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// emptyTwiML acknowledges a webhook without queueing a reply through the
// TwiML path; replies go out through the REST API instead.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type Server struct {
	cfg          *models.Config
	router       *mux.Router
	pipeline     *service.Router
	db           *database.Database
	twilioClient twilio.Client
	logger       *logrus.Logger
	server       *http.Server
}

func NewServer(cfg *models.Config, pipeline *service.Router, db *database.Database, twilioClient twilio.Client, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		router:       mux.NewRouter(),
		pipeline:     pipeline,
		db:           db,
		twilioClient: twilioClient,
		logger:       logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	rateLimiter := middleware.NewRateLimiter(s.cfg.Server.RateLimitPerMin, s.logger)

	webhooks := s.router.PathPrefix("/webhook/twilio").Subrouter()
	webhooks.Use(rateLimiter.Middleware)
	webhooks.Use(middleware.WebhookObservability(s.logger, "twilio"))
	webhooks.HandleFunc("/whatsapp", s.handleTwilioWebhook()).Methods(http.MethodPost)
	webhooks.HandleFunc("/sms", s.handleTwilioWebhook()).Methods(http.MethodPost)
	webhooks.HandleFunc("/test", s.handleWebhookTest()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleTwilioWebhook accepts one inbound message delivery. The handler
// always acknowledges with 200 so the provider stops redelivering;
// processing failures are retried through the idempotency row, not the
// HTTP status.
func (s *Server) handleTwilioWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.Server.RequestTimeoutSec)*time.Second)
		defer cancel()

		if err := r.ParseForm(); err != nil {
			s.logger.WithError(err).Warn("Failed to parse webhook form")
			http.Error(w, "invalid form payload", http.StatusBadRequest)
			return
		}

		result := s.pipeline.HandleWebhook(ctx, payloadFromForm(r))

		if r.URL.Query().Get("debug") == "1" {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(result); err != nil {
				s.logger.WithError(err).Warn("Failed to encode debug response")
			}
			return
		}

		w.Header().Set("Content-Type", "application/xml")
		if _, err := w.Write([]byte(emptyTwiML)); err != nil {
			s.logger.WithError(err).Warn("Failed to write webhook acknowledgment")
		}
	}
}

// handleWebhookTest lets the Twilio console verify the endpoint is
// reachable without posting a message.
func (s *Server) handleWebhookTest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"webhook": "twilio",
		})
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(constants.DefaultHTTPTimeoutSec)*time.Second)
		defer cancel()

		// Presence booleans only, never the values themselves.
		health := map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
			"llm":     s.cfg.OpenAI.APIKey != "",
			"config": map[string]bool{
				"twilio_account_sid": s.cfg.Twilio.AccountSID != "",
				"twilio_auth_token":  s.cfg.Twilio.AuthToken != "",
				"twilio_from_number": s.cfg.Twilio.FromNumber != "",
				"openai_api_key":     s.cfg.OpenAI.APIKey != "",
			},
		}
		status := http.StatusOK

		if err := s.db.HealthCheck(ctx); err != nil {
			health["status"] = "unhealthy"
			health["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			health["database"] = "ok"
		}

		// Provider reachability is advisory; a Twilio outage should not
		// flip the pod unhealthy and trigger restarts.
		if err := s.twilioClient.HealthCheck(ctx); err != nil {
			health["twilio"] = "unreachable"
		} else {
			health["twilio"] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(health); err != nil {
			s.logger.WithError(err).Warn("Failed to encode health response")
		}
	}
}

// payloadFromForm maps Twilio's form fields onto the canonical webhook
// payload. MediaUrlN fields are indexed from zero.
func payloadFromForm(r *http.Request) models.WebhookPayload {
	payload := models.WebhookPayload{
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		Body:       r.PostFormValue("Body"),
		MessageSid: r.PostFormValue("MessageSid"),
	}

	numMedia, err := strconv.Atoi(r.PostFormValue("NumMedia"))
	if err != nil || numMedia < 0 {
		numMedia = 0
	}
	payload.NumMedia = numMedia

	for i := 0; i < numMedia && i < constants.MaxMediaRefs; i++ {
		payload.MediaURLs = append(payload.MediaURLs, r.PostFormValue(fmt.Sprintf("MediaUrl%d", i)))
	}

	return payload
}
