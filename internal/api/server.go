package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vegasq/datamart/internal/metrics"
)

// Options configures the HTTP server.
type Options struct {
	Service Querier
	Auth    Authenticator
	Log     zerolog.Logger

	// Metrics records per-request measurements; may be nil.
	Metrics *metrics.Recorder

	// Gatherer backs /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer
}

// New builds the echo instance serving the API.
func New(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(opts.Log)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(observeRequests(opts.Metrics))
	e.Use(requestLogger(opts.Log))
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("1M"))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(opts.Gatherer)))
	}

	NewHandler(opts.Service, opts.Auth, opts.Log).RegisterRoutes(e)
	return e
}

// requestLogger writes one zerolog line per request. Errors are handed to
// the error handler here so the logged status is the one sent.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		HandleError:  true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			e := log.Info()
			if v.Status >= http.StatusInternalServerError {
				e = log.Error()
			}
			if v.Error != nil {
				e = e.Err(v.Error)
			}
			e.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// observeRequests records request counts and latency by route pattern.
func observeRequests(m *metrics.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if !c.Response().Committed && err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			m.ObserveRequest(c.Request().Method, route, status, time.Since(started))
			return err
		}
	}
}
