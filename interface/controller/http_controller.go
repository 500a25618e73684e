package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
	usecase "github.com/ca-srg/copilot-exporter/usecase/interface"
)

// HTTPController serves the exposition endpoint and the exporter's own endpoints
type HTTPController struct {
	config        *config.ServerConfig
	registry      *prometheus.Registry
	statusService usecase.StatusService
	logger        domain.Logger

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPController creates a new HTTP controller.
// The request metrics are registered on registry so they are scraped with the usage gauges.
func NewHTTPController(
	cfg *config.ServerConfig,
	registry *prometheus.Registry,
	statusService usecase.StatusService,
	logger domain.Logger,
) *HTTPController {
	factory := promauto.With(registry)

	return &HTTPController{
		config:        cfg,
		registry:      registry,
		statusService: statusService,
		logger:        logger,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "github_copilot_exporter_http_requests_total",
			Help: "Total number of HTTP requests served by the exporter.",
		}, []string{"code", "method"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "github_copilot_exporter_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by the exporter.",
			Buckets: prometheus.DefBuckets,
		}, []string{"code", "method"}),
	}
}

// Router builds the request handler
func (c *HTTPController) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, c.requestLogger)
	r.Use(c.instrument)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry:          c.registry,
		EnableOpenMetrics: true,
	}))
	r.Get("/health", c.Health)
	r.Get("/status", c.Status)

	if c.config.EnableDocs {
		r.Get("/openapi.json", c.OpenAPIJSON)
		r.Get("/docs", c.OpenAPIDocs)
	}

	return r
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// the server down within the configured grace period
func (c *HTTPController) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", c.config.ListenAddress)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "failed to listen on "+c.config.ListenAddress, err)
	}
	return c.serve(ctx, listener)
}

func (c *HTTPController) serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           c.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info(ctx, "HTTP server listening", domain.NewField("address", listener.Addr().String()))
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout())
	defer cancel()

	c.logger.Info(shutdownCtx, "Shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *HTTPController) shutdownTimeout() time.Duration {
	if c.config.ShutdownTimeoutSec > 0 {
		return time.Duration(c.config.ShutdownTimeoutSec) * time.Second
	}
	return 5 * time.Second
}

// Health reports that the process is serving
func (c *HTTPController) Health(w http.ResponseWriter, _ *http.Request) {
	c.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the poller state
func (c *HTTPController) Status(w http.ResponseWriter, r *http.Request) {
	status, err := c.statusService.GetStatus()
	if err != nil {
		c.logger.Error(r.Context(), "Failed to get status", domain.ErrorField(err))
		c.json(w, http.StatusInternalServerError, map[string]string{"error": "status unavailable"})
		return
	}
	c.json(w, http.StatusOK, status)
}

func (c *HTTPController) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// instrument records request count and latency, labelled by code and method
func (c *HTTPController) instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerDuration(c.duration,
		promhttp.InstrumentHandlerCounter(c.requests, next))
}

func (c *HTTPController) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		c.logger.Debug(r.Context(), "HTTP request served",
			domain.NewField("request_id", middleware.GetReqID(r.Context())),
			domain.NewField("method", r.Method),
			domain.NewField("path", r.URL.Path),
			domain.NewField("status", ww.Status()),
			domain.NewField("bytes", ww.BytesWritten()),
			domain.NewField("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
