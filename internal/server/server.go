// Package server exposes the reconciliation trigger over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"announcer/internal/domain"
)

const greeting = "Hello, check out https://nais.io/log/!"

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Reconcile(ctx context.Context) (*domain.RunSummary, error)
}

type Handler struct {
	reconciler Reconciler
	runTimeout time.Duration
	logger     *slog.Logger
}

// New builds the echo instance with all routes registered.
func New(reconciler Reconciler, runTimeout time.Duration, logger *slog.Logger) *echo.Echo {
	h := &Handler{
		reconciler: reconciler,
		runTimeout: runTimeout,
		logger:     logger.With("component", "server"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				h.logger.Debug("request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
				return nil
			}
			h.logger.Error("request failed",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error.Error())
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/", h.Hello)
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/reconcile", h.Reconcile)

	return e
}

func (h *Handler) Hello(c echo.Context) error {
	return c.String(http.StatusOK, greeting)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Reconcile runs one pass and answers with the run summary.
func (h *Handler) Reconcile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.runTimeout)
	defer cancel()

	summary, err := h.reconciler.Reconcile(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	return c.JSON(statusFor(summary, err), summary)
}

func statusFor(summary *domain.RunSummary, err error) int {
	var fetchErr *domain.FetchError
	switch {
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case err != nil:
		return http.StatusInternalServerError
	case summary.Status == domain.RunSucceeded:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
