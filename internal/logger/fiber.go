package logger

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// FiberMiddleware logs one record per request and stores a request-scoped
// logger in the user context, so handlers reach it with
// FromContext(c.UserContext()). The request id is taken from the response
// header set by the requestid middleware, falling back to the incoming
// X-Request-ID header. A nil l means Default().
func FiberMiddleware(l *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		base := l
		if base == nil {
			base = Default()
		}

		reqID := c.GetRespHeader(fiber.HeaderXRequestID)
		if reqID == "" {
			reqID = c.Get(fiber.HeaderXRequestID)
		}
		ctx := IntoContext(c.UserContext(), base)
		if reqID != "" {
			// fasthttp reuses header buffers once the request is done.
			ctx = WithRequestID(ctx, utils.CopyString(reqID))
		}
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		route := ""
		if r := c.Route(); r != nil {
			route = r.Path
		}

		attrs := []any{
			"status", status,
			"method", c.Method(),
			"path", c.OriginalURL(),
			"route", route,
			"ip", c.IP(),
			"user_agent", c.Get(fiber.HeaderUserAgent),
			"latency_ms", float64(latency.Microseconds()) / 1000.0,
		}

		log := FromContext(ctx)
		if err != nil {
			log.Error("http request", append(attrs, "err", err.Error())...)
			return err
		}
		log.Info("http request", attrs...)
		return nil
	}
}
