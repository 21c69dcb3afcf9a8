// Package server renders storefront pages on the server: it routes the
// request URL, dispatches the page intent, and writes an HTML shell that
// carries the result to the client as a prefetched intent.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr   string
	Logger *slog.Logger
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
}

// Server serves rendered storefront pages.
type Server struct {
	jet     *jet.Jet
	logger  *slog.Logger
	handler http.Handler
	http    *http.Server
}

// New creates a Server dispatching through j. j must have the URL router
// and page controllers registered.
func New(j *jet.Jet, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{jet: j, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Get("/*", s.page)

	s.handler = r
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe runs until ctx ends, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serveErr := make(chan error, 1)
	s.logger.Info("storefront listening", "addr", ln.Addr().String())
	go func() {
		serveErr <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type statusCoder interface {
	StatusCode() int
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	url := r.URL.RequestURI()

	route := s.jet.RouteURL(ctx, url)
	if route == nil {
		templ.Handler(NotFound(url), templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
		return
	}

	p, err := jet.DispatchPage(ctx, s.jet, route.Intent)
	if err != nil {
		var sc statusCoder
		if errors.As(err, &sc) && sc.StatusCode() == http.StatusNotFound {
			templ.Handler(NotFound(url), templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
			return
		}
		s.logger.Error("page fetch failed", "url", url, "intent", route.Intent.Kind(), "error", err)
		templ.Handler(Failure(err), templ.WithStatus(http.StatusBadGateway)).ServeHTTP(w, r)
		return
	}

	env, err := intent.Wrap(route.Intent)
	if err != nil {
		s.logger.Error("wrap prefetched intent", "intent", route.Intent.Kind(), "error", err)
		templ.Handler(Failure(err), templ.WithStatus(http.StatusInternalServerError)).ServeHTTP(w, r)
		return
	}

	templ.Handler(Shell(ShellData{
		Lang:       route.Language,
		Page:       p,
		Prefetched: []jet.PrefetchedIntent{{Intent: env, Page: p}},
		ServerSide: intent.RequiresServerSide(route.Intent),
	})).ServeHTTP(w, r)
}
