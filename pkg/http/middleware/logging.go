package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "WhyAgent/pkg/logger"
)

// RequestLogging logs HTTP requests. Paths in quiet are logged at debug level.
func RequestLogging(l *applogger.Logger, quiet ...string) echo.MiddlewareFunc {
	probes := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		probes[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", res.Status),
				applogger.Duration("duration_ms", time.Since(start)),
			}
			_, probe := probes[c.Path()]
			switch {
			case res.Status >= 500:
				l.Error("http request", fields...)
			case probe:
				l.Debug("http request", fields...)
			default:
				l.Info("http request", fields...)
			}

			return nil
		}
	}
}
