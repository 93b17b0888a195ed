// Package server exposes the client engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/server/handler"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/server/middleware"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// FlowRateLimit caps flow starts per client IP per FlowRateWindow.
	// Zero disables the limit.
	FlowRateLimit  int
	FlowRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Sessions may be nil when no KV store is configured.
type Handlers struct {
	Health   *handler.HealthHandler
	Opinions *handler.OpinionHandler
	Pools    *handler.PoolHandler
	Flows    *handler.FlowHandler
	Sessions *handler.SessionHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in CORS, logging and
// auth. limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/health/rpc", handlers.Health.RPC)
	mux.HandleFunc("GET /api/health/reports", handlers.Health.Reports)

	mux.HandleFunc("GET /api/opinions/{id}", handlers.Opinions.GetOpinion)

	mux.HandleFunc("GET /api/pools/{id}", handlers.Pools.GetPool)
	mux.HandleFunc("GET /api/pools/{id}/funding", handlers.Pools.Funding)
	mux.HandleFunc("GET /api/pools/{id}/withdrawal", handlers.Pools.Withdrawal)

	var start http.Handler = http.HandlerFunc(handlers.Flows.StartFlow)
	if limiter != nil && cfg.FlowRateLimit > 0 {
		start = middleware.RateLimit(limiter, "flows", cfg.FlowRateLimit, cfg.FlowRateWindow, logger)(start)
	}
	mux.Handle("POST /api/flows/{kind}", start)
	mux.HandleFunc("GET /api/flows", handlers.Flows.ListFlows)
	mux.HandleFunc("GET /api/flows/{id}", handlers.Flows.GetFlow)
	mux.HandleFunc("POST /api/flows/{id}/retry", handlers.Flows.RetryFlow)
	mux.HandleFunc("DELETE /api/flows/{id}", handlers.Flows.StopFlow)

	if handlers.Sessions != nil {
		mux.HandleFunc("POST /api/sessions", handlers.Sessions.CreateSession)
		mux.HandleFunc("GET /api/sessions/{address}", handlers.Sessions.GetSession)
		mux.HandleFunc("DELETE /api/sessions/{address}", handlers.Sessions.DeleteSession)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = authExceptSessions(cfg.APIKey, h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// authExceptSessions applies the API key to everything but the session
// routes, which browser wallets call directly and which verify a signature
// instead.
func authExceptSessions(apiKey string, next http.Handler) http.Handler {
	guarded := middleware.Auth(apiKey)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/sessions" || strings.HasPrefix(r.URL.Path, "/api/sessions/") {
			next.ServeHTTP(w, r)
			return
		}
		guarded.ServeHTTP(w, r)
	})
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
