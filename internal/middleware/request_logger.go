package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const errorKey = "request_error"

// SetError はJSONで返したエラーをアクセスログに載せる
func SetError(c echo.Context, err error) {
	c.Set(errorKey, err)
}

// RequestLogger は1リクエスト1行の構造化ログを出す。
// request_id は echo の RequestID ミドルウェアが付けたヘッダから取る。
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				//ステータスを確定させる
				c.Error(err)
			}

			logged := err
			if logged == nil {
				logged, _ = c.Get(errorKey).(error)
			}

			req := c.Request()
			res := c.Response()
			status := res.Status

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", c.Path()),
				zap.String("uri", req.RequestURI),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("client_ip", c.RealIP()),
				zap.Int64("body_size", res.Size),
			}
			if rid := res.Header().Get(echo.HeaderXRequestID); rid != "" {
				fields = append(fields, zap.String("request_id", rid))
			}
			if logged != nil {
				fields = append(fields, zap.Error(logged))
			}

			switch {
			case status >= 500:
				logger.Error("http_request", fields...)
			case status >= 400:
				logger.Warn("http_request", fields...)
			default:
				logger.Info("http_request", fields...)
			}
			return nil
		}
	}
}
