package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// New はmiddlewareとルートを載せたechoを返す
func New(cfg config.Config, log *zap.Logger, routers ...Router) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.RateLimit(cfg.RateLimitRPS))

	RegisterRoutes(e, routers...)
	return e
}

// Start はctxが終わるまで待ち受け、終わったらgraceful shutdown
func Start(ctx context.Context, e *echo.Echo, addr string, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	//処理中のリクエストを待つ
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}
