package middleware

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/notes-marketplace/internal/logging"
)

// RequestLogger writes one structured access log line per request.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:    true,
        LogURI:       true,
        LogStatus:    true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            args := []any{
                "method", v.Method,
                "uri", v.URI,
                "status", v.Status,
                "latency_ms", v.Latency.Milliseconds(),
                "remote_ip", v.RemoteIP,
                "user_id", UserID(c),
            }
            if v.RequestID != "" {
                args = append(args, "request_id", v.RequestID)
            }
            ctx := c.Request().Context()
            switch {
            case v.Error != nil:
                log.Error(ctx, "request failed", append(args, "err", v.Error)...)
            case v.Status >= 500:
                log.Warn(ctx, "request", args...)
            default:
                log.Info(ctx, "request", args...)
            }
            return nil
        },
    })
}
