// Package server exposes the HTTP API: report generation, billing, account
// linking, and sharing.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lego3072/rentready-ai/internal/account"
	"github.com/lego3072/rentready-ai/internal/billing"
	"github.com/lego3072/rentready-ai/internal/config"
	"github.com/lego3072/rentready-ai/internal/metrics"
	"github.com/lego3072/rentready-ai/internal/report"
)

// Deps holds shared dependencies injected into HTTP handlers.
type Deps struct {
	Config   *config.Config
	Reports  *report.Service
	Accounts *account.Service
	Checkout *billing.Checkout
	Verifier *billing.Verifier
	Webhook  http.Handler
	Version  string
}

// Router handles HTTP routing.
type Router struct {
	mux  *http.ServeMux
	deps *Deps
}

// NewRouter creates a router with all routes registered.
func NewRouter(deps *Deps) *Router {
	r := &Router{
		mux:  http.NewServeMux(),
		deps: deps,
	}
	RegisterRoutes(r.mux, deps)
	return r
}

// RegisterRoutes wires all HTTP handlers onto the given ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	h := &handlers{deps: deps}

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/user/status", h.handleUserStatus)

	reportLimiter := NewRateLimiter(60, time.Minute)
	mux.Handle("POST /api/upload-photos", reportLimiter.Middleware(http.HandlerFunc(h.handleUploadPhotos)))
	mux.Handle("POST /api/analyze", reportLimiter.Middleware(http.HandlerFunc(h.handleAnalyze)))
	mux.HandleFunc("GET /api/report/{id}", h.handleGetReport)
	mux.HandleFunc("GET /api/report/{id}/pdf", h.handleReportPDF)
	mux.HandleFunc("POST /api/report/{id}/signature", h.handleAddSignature)
	mux.HandleFunc("POST /api/report/{id}/share", h.handleCreateShare)
	mux.HandleFunc("GET /share/{token}", h.handleResolveShare)
	mux.HandleFunc("POST /api/email-report", h.handleEmailReport)

	// Billing: checkout and verify are rate limited per client IP; the
	// webhook is signature-authenticated and rate limited separately.
	billingLimiter := NewRateLimiter(30, time.Minute)
	mux.Handle("POST /api/checkout/single", billingLimiter.Middleware(http.HandlerFunc(h.handleCheckoutSingle)))
	mux.Handle("POST /api/checkout/pro", billingLimiter.Middleware(http.HandlerFunc(h.handleCheckoutPro)))
	mux.Handle("POST /api/verify-payment", billingLimiter.Middleware(http.HandlerFunc(h.handleVerifyPayment)))

	webhookLimiter := NewRateLimiter(120, time.Minute)
	mux.Handle("POST /api/webhook", webhookLimiter.Middleware(deps.Webhook))

	accountLimiter := NewRateLimiter(20, time.Minute)
	mux.Handle("POST /api/account/signup", accountLimiter.Middleware(http.HandlerFunc(h.handleSignup)))
	mux.Handle("POST /api/account/login", accountLimiter.Middleware(http.HandlerFunc(h.handleLogin)))
	mux.HandleFunc("GET /api/account/profile", h.handleProfile)
	mux.HandleFunc("POST /api/account/update", h.handleUpdateProfile)

	mux.Handle("GET /metrics", promhttp.Handler())
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasPrefix(req.URL.Path, "/api/") || strings.HasPrefix(req.URL.Path, "/share/") {
		addSecurityHeaders(w)
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	r.mux.ServeHTTP(rec, req)
	metrics.HTTPRequestsTotal.WithLabelValues(req.Method, fmt.Sprintf("%d", rec.status)).Inc()
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", rec.status).
		Dur("duration", time.Since(start)).
		Msg("Request handled")
}

func addSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}
