package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dsaquest/contestscope/pkg/cache"
	"github.com/dsaquest/contestscope/pkg/digest"
	"github.com/dsaquest/contestscope/pkg/metrics"
	"github.com/dsaquest/contestscope/pkg/ranking"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Config wires the server to the aggregation pipeline.
type Config struct {
	Cache   *cache.Cache
	Load    cache.Loader
	Ranking ranking.Table

	// Digest, DigestSecret and DigestLockPath drive the cron trigger. The
	// trigger answers 503 while either of the first two is unset.
	Digest         *digest.Runner
	DigestSecret   string
	DigestLockPath string

	Metrics     *metrics.Metrics
	CORSOrigins []string
	Log         logrus.FieldLogger
	Now         func() time.Time
}

type Server struct {
	cfg    Config
	log    logrus.FieldLogger
	now    func() time.Time
	router chi.Router
}

func New(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		log: cfg.Log,
		now: cfg.Now,
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.log = l
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(s.cfg.CORSOrigins) == 0 {
		s.cfg.CORSOrigins = []string{"*"}
	}
	s.router = s.routes()
	return s
}

const readTimeout = 60 * time.Second

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(readTimeout))
			r.Get("/contests", s.handleContests)
			r.Get("/contests/ranked", s.handleRankedContests)
			r.Get("/contests/upcoming", s.handleUpcomingContests)
			r.Get("/sources", s.handleSources)
		})

		// No request timeout here: a digest run finishes even if the caller
		// goes away.
		r.With(s.bearerAuth).Get("/cron/send-digest", s.handleSendDigest)
		r.With(s.bearerAuth).Post("/cron/send-digest", s.handleSendDigest)
	})

	return r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then drains in-flight
// requests for up to 10 seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Cold aggregations and digest runs can take a while.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Infof("Starting server on %s", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return err
		}
		return nil
	}
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": chimiddleware.GetReqID(r.Context()),
			}).Debug("request")
		})
	}
}
