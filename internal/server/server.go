// Package server exposes the page services to the editor UI: a JSON API for
// reading, editing and publishing pages, a websocket for live updates, the
// prometheus metrics endpoint and a small page index.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/merge"
	"github.com/conneroisu/pagesmith/internal/metrics"
	"github.com/conneroisu/pagesmith/internal/publish"
	"github.com/conneroisu/pagesmith/internal/server/middleware"
	"github.com/conneroisu/pagesmith/internal/services"
	"github.com/conneroisu/pagesmith/internal/websocket"
)

// maxBodyBytes caps request bodies. Full-document edits carry whole pages.
const maxBodyBytes = 10 << 20

// Pages is the page service the API drives.
type Pages interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, page string) (*services.ReadResult, error)
	Save(ctx context.Context, page string, req *merge.EditRequest) (*services.SaveResult, error)
	Create(ctx context.Context, page, body string) (*services.SaveResult, error)
}

// Publisher runs publish passes.
type Publisher interface {
	Publish(ctx context.Context, pages []string) (*publish.Report, error)
	Last() *publish.Report
}

// Options holds the server's dependencies.
type Options struct {
	Config    *config.Config
	Pages     Pages
	Publisher Publisher
	Metrics   *metrics.Recorder
	Logger    logging.Logger
}

// Server serves the editor API.
type Server struct {
	cfg       *config.Config
	pages     Pages
	publisher Publisher
	metrics   *metrics.Recorder
	ws        *websocket.WebSocketManager
	logger    logging.Logger

	handler     http.Handler
	httpServer  *http.Server
	serverMutex sync.RWMutex
	cancel      context.CancelFunc
}

// New builds a server and its routes. The server is not listening until
// Start is called.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.OrNop(opts.Logger).WithComponent("server")

	s := &Server{
		cfg:       cfg,
		pages:     opts.Pages,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	origins := allowedOrigins(cfg)
	s.ws = websocket.NewWebSocketManager(origins, logger)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	chain := []func(http.Handler) http.Handler{
		middleware.Recover(logger),
		middleware.Logging(logger),
		middleware.SecurityHeaders,
		middleware.CORS(origins.IsAllowedOrigin),
	}
	if cfg.Server.RequestsPerMinute > 0 {
		limiter := middleware.NewRateLimiter(ctx, middleware.RateLimit{
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
			BurstLimit:        cfg.Server.Burst,
		})
		chain = append(chain, limiter.Handler)
	}
	s.handler = middleware.Chain(mux, chain...)

	return s
}

// allowedOrigins always admits the server's own address.
func allowedOrigins(cfg *config.Config) websocket.HostList {
	hosts := websocket.HostList{
		net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
	}
	return append(hosts, cfg.Server.AllowedOrigins...)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/pages", s.handleListPages)
	mux.HandleFunc("GET /api/pages/{name}", s.handleReadPage)
	mux.HandleFunc("POST /api/pages/{name}", s.handleSavePage)
	mux.HandleFunc("PUT /api/pages/{name}", s.handleCreatePage)
	mux.HandleFunc("POST /api/publish", s.handlePublish)
	mux.HandleFunc("GET /ws", s.ws.HandleWebSocket)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /{$}", s.handleIndex)
}

// Handler returns the complete handler, middleware included.
func (s *Server) Handler() http.Handler { return s.handler }

// Broadcast pushes msg to every connected editor.
func (s *Server) Broadcast(msg websocket.UpdateMessage) {
	s.ws.BroadcastMessage(msg)
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, fmt.Sprint(s.cfg.Server.Port))
}

// Start listens until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "editor server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the listener, the websocket hub and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if err := s.ws.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, err, "websocket shutdown failed")
	}

	s.serverMutex.RLock()
	server := s.httpServer
	s.serverMutex.RUnlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
