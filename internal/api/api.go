// Package api exposes the webhook endpoint and the small operations surface.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiara-bot/kiara/internal/messenger"
	"github.com/kiara-bot/kiara/internal/models"
	"github.com/kiara-bot/kiara/internal/router"
	"github.com/kiara-bot/kiara/internal/store"
)

// SubscriptionClient manages page webhook subscriptions on the Graph API.
// Implemented by *messenger.Client.
type SubscriptionClient interface {
	SubscribePage(ctx context.Context, pageID, pageToken string) error
	GetSubscriptions(ctx context.Context, pageID, pageToken string) ([]messenger.Subscription, error)
}

// Opts holds configuration options for the server.
type Opts struct {
	Addr          string
	Subscriptions SubscriptionClient
}

// Option defines a configuration option for the server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithSubscriptions enables the page subscription endpoints.
func WithSubscriptions(client SubscriptionClient) Option {
	return func(o *Opts) { o.Subscriptions = client }
}

// Server serves the webhook and operations endpoints.
type Server struct {
	events      *router.Router
	store       store.Store
	verifyToken string
	subs        SubscriptionClient
	httpServer  *http.Server
}

// NewServer creates the HTTP server around the event router.
func NewServer(events *router.Router, st store.Store, verifyToken string, opts ...Option) *Server {
	cfg := Opts{Addr: ":8080"}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		events:      events,
		store:       st,
		verifyToken: verifyToken,
		subs:        cfg.Subscriptions,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/webhook", s.handleVerify)
	r.Post("/webhook", s.handleWebhook)

	if s.subs != nil {
		r.Post("/pages/{pageID}/subscribe", s.handleSubscribe)
		r.Get("/pages/{pageID}/subscriptions", s.handleSubscriptions)
	}
	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports liveness plus storage reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		slog.Error("Health check storage ping failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

// handleVerify answers the Graph API webhook handshake: echo the challenge
// when the verify token matches, 403 otherwise.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "subscribe" && token == s.verifyToken {
		slog.Info("Webhook verified")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	slog.Warn("Webhook verification rejected", "mode", mode)
	w.WriteHeader(http.StatusForbidden)
}

// handleWebhook acknowledges a delivery immediately and processes each entry
// on its own goroutine; per-user ordering is enforced further down by the
// keyed lock, not here.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Webhook body rejected", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if payload.Object != "page" {
		slog.Debug("Non-page webhook object dropped", "object", payload.Object)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	for _, entry := range payload.Entry {
		go s.events.HandleEntry(context.WithoutCancel(r.Context()), entry)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))
}

// handleSubscribe subscribes the app to a provisioned page's webhook fields.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pageConfig(w, r)
	if !ok {
		return
	}
	if err := s.subs.SubscribePage(r.Context(), cfg.PageID, cfg.PageToken); err != nil {
		slog.Error("Page subscribe failed", "error", err, "pageID", cfg.PageID)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "subscribe failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

// handleSubscriptions lists a provisioned page's current subscriptions.
func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.pageConfig(w, r)
	if !ok {
		return
	}
	subs, err := s.subs.GetSubscriptions(r.Context(), cfg.PageID, cfg.PageToken)
	if err != nil {
		slog.Error("Subscription listing failed", "error", err, "pageID", cfg.PageID)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "listing failed"})
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// pageConfig resolves the {pageID} route parameter to a provisioned page,
// writing the error response itself when the page is unknown.
func (s *Server) pageConfig(w http.ResponseWriter, r *http.Request) (*models.PageConfig, bool) {
	pageID := chi.URLParam(r, "pageID")
	cfg, err := s.store.GetPageConfig(r.Context(), pageID)
	if err != nil {
		slog.Error("Page config lookup failed", "error", err, "pageID", pageID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return nil, false
	}
	if cfg == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown page"})
		return nil, false
	}
	return cfg, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
