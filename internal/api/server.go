// Package api exposes the tracking, lead-capture, quiz, checkout, and
// webhook endpoints behind a chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/brand"
	"github.com/access-realty/directlist/internal/lead"
	"github.com/access-realty/directlist/internal/parcel"
	"github.com/access-realty/directlist/internal/store"
	"github.com/access-realty/directlist/pkg/slack"
	"github.com/access-realty/directlist/pkg/stripe"
)

// Config carries the server's request-handling settings.
type Config struct {
	AllowedOrigins []string
	CookieDomain   string
	CookieSecure   bool

	// CalendlySigningKey verifies webhook deliveries; empty disables the
	// endpoint.
	CalendlySigningKey string

	Checkout CheckoutConfig
	Brand    brand.Config
}

// CheckoutConfig maps selling options to Stripe prices.
type CheckoutConfig struct {
	Prices     map[string]string
	SuccessURL string
	CancelURL  string
}

// Server wires the HTTP surface to the domain services. Optional
// dependencies (payments, notifier, resolver) may be nil; their endpoints
// then answer 503.
type Server struct {
	cfg      Config
	store    store.Store
	tracker  *attribution.Tracker
	leads    *lead.Service
	resolver *parcel.Resolver
	payments stripe.Client
	notifier slack.Client

	router chi.Router
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithResolver enables the parcel lookup endpoint.
func WithResolver(r *parcel.Resolver) Option {
	return func(s *Server) {
		s.resolver = r
	}
}

// WithPayments enables the checkout endpoint.
func WithPayments(c stripe.Client) Option {
	return func(s *Server) {
		s.payments = c
	}
}

// WithNotifier enables Slack alerts for meeting webhooks.
func WithNotifier(n slack.Client) Option {
	return func(s *Server) {
		s.notifier = n
	}
}

// NewServer builds the router.
func NewServer(cfg Config, st store.Store, tracker *attribution.Tracker, leads *lead.Service, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		tracker: tracker,
		leads:   leads,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.visitorCookie)
		r.Post("/track", s.handleTrack)
		r.Get("/attribution", s.handleAttribution)
		r.Post("/leads", s.handleCreateLead)
		r.Post("/inquiries", s.handleCreateInquiry)
		r.Post("/quiz/recommend", s.handleQuizRecommend)
		r.Post("/checkout", s.handleCheckout)
		r.Get("/parcels", s.handleParcelLookup)
	})

	r.Post("/webhooks/calendly", s.handleCalendlyWebhook)

	s.router = r
	return s
}

// Handler returns the full middleware chain, brand rewrite outermost so
// secondary-host paths land on the right routes.
func (s *Server) Handler() http.Handler {
	return brand.Rewrite(s.cfg.Brand)(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
