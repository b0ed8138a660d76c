package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger_LevelsByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/missing", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "nope") })

	for _, path := range []string{"/ok", "/missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Equal(t, int64(404), entries[1].ContextMap()["status"])
	}
}

func TestRequestLogger_LogsHandledError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/down", func(c echo.Context) error {
		SetError(c, errors.New("db down"))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "TRANSIENT"})
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/down", nil))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "db down", entries[0].ContextMap()["error"])
	}
}

func TestRateLimit_Denies(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(0.5))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	//burst=1なので2回目は拒否
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(0))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
