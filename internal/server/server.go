package server

import (
	"net/http"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps wires the router.
type Deps struct {
	Engine *goVerify.Engine
	Logger *zap.Logger
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// TrustForwarded takes the client IP from X-Forwarded-For.
	TrustForwarded bool
}

// NewRouter mounts the verification API.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{engine: deps.Engine, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Use(middleware.ClientIP(deps.TrustForwarded))

	r.Get("/healthz", h.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/codes", h.requestCode)
		r.Post("/codes/verify", h.submitCode)
		r.Post("/signin/code", h.signInWithCode)
		r.Post("/password/reset", h.consumeResetSession)
		r.Post("/password/forgot", h.requestResetLink)
		r.Post("/password/reset-link", h.confirmResetLink)

		r.With(middleware.Guard(deps.Engine)).Get("/me", h.me)
	})

	return r
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("request failed", fields...)
				return
			}
			logger.Debug("request completed", fields...)
		})
	}
}
