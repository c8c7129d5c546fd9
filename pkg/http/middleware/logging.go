package middleware

import (
	"time"

	applogger "TradeDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs each request with its request id. Client errors are
// logged at info so rejected orders and bad symbols show up without debug.
// 5xx and slow requests are left to Metrics.
func RequestLogging(lgr *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req, res := c.Request(), c.Response()
			fields := []applogger.Field{
				applogger.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", res.Status),
				applogger.Duration("latency", time.Since(start)),
			}
			if res.Status >= 400 && res.Status < 500 {
				lgr.Info("http request rejected", fields...)
			} else {
				lgr.Debug("http request", fields...)
			}
			return err
		}
	}
}
