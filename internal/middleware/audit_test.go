package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditRow struct {
	method string
	path   string
	status int
}

type recordingWriter struct {
	mu   sync.Mutex
	rows []auditRow
	done chan struct{}
}

func (w *recordingWriter) WriteAudit(method, path string, status int, ip, userAgent string, durationMS int64) error {
	w.mu.Lock()
	w.rows = append(w.rows, auditRow{method: method, path: path, status: status})
	w.mu.Unlock()
	close(w.done)
	return nil
}

func TestAuditMiddlewareRecordsRequest(t *testing.T) {
	writer := &recordingWriter{done: make(chan struct{})}

	app := fiber.New()
	app.Use(AuditMiddleware(writer))
	app.Post("/webhook", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/webhook", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-writer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit row was never written")
	}

	writer.mu.Lock()
	defer writer.mu.Unlock()
	require.Len(t, writer.rows, 1)
	assert.Equal(t, auditRow{method: "POST", path: "/webhook", status: http.StatusOK}, writer.rows[0])
}
