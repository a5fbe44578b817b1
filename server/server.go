// Package server exposes the price board and the contact form over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/contact"
	"github.com/cyberfolio/folio-core/logger"
	"github.com/cyberfolio/folio-core/ratelimit"
	"github.com/cyberfolio/folio-core/ticker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// VisitorCookie carries the rate limit identifier between submissions.
const VisitorCookie = "folio_visitor"

const (
	maxContactBody  = 16 << 10
	visitorLifetime = 365 * 24 * time.Hour
)

type Prices interface {
	Snapshot(ctx context.Context) (ticker.Snapshot, error)
}

type Submitter interface {
	Submit(ctx context.Context, identifier string, form contact.Form) (contact.Receipt, error)
}

type Server struct {
	prices       Prices
	contact      Submitter
	logger       logger.Logger
	secureCookie bool
	onPrices     func()
}

type Option func(*Server)

// WithSecureCookie marks the visitor cookie Secure, for HTTPS deployments.
func WithSecureCookie(secure bool) Option {
	return func(s *Server) { s.secureCookie = secure }
}

// WithPriceWatcher registers a callback run on every price board request,
// so a poller can stay active only while someone is looking.
func WithPriceWatcher(fn func()) Option {
	return func(s *Server) { s.onPrices = fn }
}

func New(log logger.Logger, prices Prices, submitter Submitter, opts ...Option) *Server {
	s := &Server{
		prices:  prices,
		contact: submitter,
		logger:  log.WithPrefix("[http]"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.logRequest)
	r.Use(s.recovery)

	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/prices", s.getPrices)
		r.Post("/contact", s.postContact)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errorJSON(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.errorJSON(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) getPrices(w http.ResponseWriter, r *http.Request) {
	if s.onPrices != nil {
		s.onPrices()
	}
	snap, err := s.prices.Snapshot(r.Context())
	if err != nil {
		s.logger.Warn("price snapshot failed: %s", err)
		s.errorJSON(w, "price feed unavailable", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, snap, http.StatusOK)
}

// visitor returns the caller's identifier, minting and setting a cookie when
// the request has none.
func (s *Server) visitor(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(VisitorCookie); err == nil && strings.HasPrefix(c.Value, ratelimit.IdentifierPrefix) {
		return c.Value
	}
	id := ratelimit.NewIdentifier()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorLifetime / time.Second),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) postContact(w http.ResponseWriter, r *http.Request) {
	id := s.visitor(w, r)

	var form contact.Form
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxContactBody))
	if err := dec.Decode(&form); err != nil {
		s.errorJSON(w, "invalid request body", http.StatusBadRequest)
		return
	}

	receipt, err := s.contact.Submit(r.Context(), id, form)
	if err == nil {
		s.writeJSON(w, receipt, http.StatusAccepted)
		return
	}

	var rateErr *contact.RateLimitError
	var validErr *contact.ValidationError
	switch {
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.Seconds()))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rateErr.Remaining))
		s.writeJSON(w, map[string]any{
			"error":       "Rate limit exceeded. Please wait " + strconv.Itoa(rateErr.Seconds()) + " seconds.",
			"retry_after": rateErr.Seconds(),
		}, http.StatusTooManyRequests)
	case errors.As(err, &validErr):
		s.writeJSON(w, map[string]any{
			"error":    "validation failed",
			"problems": validErr.Problems,
		}, http.StatusUnprocessableEntity)
	case errors.Is(err, contact.ErrRelayNotConfigured):
		s.errorJSON(w, "email service not configured", http.StatusServiceUnavailable)
	default:
		s.errorJSON(w, "transmission failed, please try again", http.StatusBadGateway)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode json failed: %s", err)
	}
}

func (s *Server) errorJSON(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, map[string]string{"error": message}, status)
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Debug("%s %s %d %s %s", r.Method, r.URL.Path, status, time.Since(start).Round(time.Microsecond), r.RemoteAddr)
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic serving %s: %v", r.URL.Path, rec)
				s.errorJSON(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Serve runs srv until ctx ends, then shuts it down within shutdownTimeout.
func Serve(ctx context.Context, log logger.Logger, srv *http.Server, shutdownTimeout time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	log.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	return nil
}
