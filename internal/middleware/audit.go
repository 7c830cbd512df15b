package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
)

// AuditWriter defines how served-request records are persisted.
type AuditWriter interface {
	WriteAudit(method, path string, status int, ip, userAgent string, durationMS int64) error
}

// AuditMiddleware records every request to the ledger. The write happens off
// the request path; request values are captured before the handler runs
// because Fiber reuses context objects.
func AuditMiddleware(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		method := c.Method()
		path := c.Path()
		ip := c.IP()
		userAgent := c.Get("User-Agent")

		err := c.Next()

		status := c.Response().StatusCode()
		durationMS := time.Since(start).Milliseconds()

		go func() {
			if writeErr := writer.WriteAudit(method, path, status, ip, userAgent, durationMS); writeErr != nil {
				slog.Error("failed to write audit record", "error", writeErr)
			}
		}()

		return err
	}
}
