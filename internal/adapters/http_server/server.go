package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"localdir/internal/adapters/identity"
)

type Options struct {
	Verifier       *identity.Verifier
	Limiter        *RateLimiter
	RequestTimeout time.Duration
}

type Server struct {
	mux     *chi.Mux
	timeout time.Duration
}

func New(opts Options) *Server {
	m := chi.NewRouter()

	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Metrics)
	m.Use(Logger(log.Logger))
	if opts.Limiter != nil {
		m.Use(opts.Limiter.Middleware)
	}
	m.Use(Authenticate(opts.Verifier))

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	return &Server{mux: m, timeout: opts.RequestTimeout}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
