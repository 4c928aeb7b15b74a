// Package server exposes the relay over HTTP: buffered and streamed
// completions, backend status and a liveness probe.
package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Abraxas-365/ollamarelay/llm"
)

const (
	ServiceName = "ollama-relay"

	defaultStatusTimeout = 5 * time.Second
	maxRequestBody       = 1 << 20
)

// Server holds the dependencies of the HTTP handlers. Handlers keep no
// per-request state on it.
type Server struct {
	llm            llm.LLM
	models         llm.ModelLister
	model          string
	version        string
	defaultOptions map[string]any
	statusTimeout  time.Duration
	logger         zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by the liveness probe.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithDefaultOptions are model options applied before any options in the
// request body.
func WithDefaultOptions(options map[string]any) Option {
	return func(s *Server) {
		s.defaultOptions = options
	}
}

// WithStatusTimeout bounds the backend query made by GET /status.
func WithStatusTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.statusTimeout = d
	}
}

// New creates a Server. model is used when a request names none; models
// may be nil, in which case /status always reports the backend down.
func New(backend llm.LLM, models llm.ModelLister, model string, opts ...Option) *Server {
	s := &Server{
		llm:           backend,
		models:        models,
		model:         model,
		version:       "dev",
		statusTimeout: defaultStatusTimeout,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /ask/stream", s.handleAskStream)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	var h http.Handler = mux
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.NewHandler(s.logger)(h)
	return h
}
