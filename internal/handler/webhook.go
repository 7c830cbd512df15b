package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hookbridge/hookbridge/internal/domain"
	"github.com/hookbridge/hookbridge/internal/service"
)

// deduplicationWindow is how long delivery IDs are tracked for replay
// suppression. The provider typically retries within minutes.
const deduplicationWindow = time.Hour

// WebhookHandler accepts the provider's push hook. Internal failures are
// logged and swallowed: the response is always a success status, because a
// non-success would only make the provider resend an unchanged payload
// against a now-partially-mirrored repository.
type WebhookHandler struct {
	pipeline *service.Pipeline
	secret   []byte // empty disables signature verification

	mu         sync.Mutex
	deliveries map[string]time.Time
}

// NewWebhookHandler creates the handler. secret, when non-empty, enables
// HMAC-SHA256 verification of the raw request body.
func NewWebhookHandler(pipeline *service.Pipeline, secret string) *WebhookHandler {
	return &WebhookHandler{
		pipeline:   pipeline,
		secret:     []byte(secret),
		deliveries: make(map[string]time.Time),
	}
}

// Register sets up the hook routes. The bare root path matches the hook URL
// the provider is usually configured with.
func (h *WebhookHandler) Register(app *fiber.App) {
	app.Post("/", h.Receive)
	app.Post("/webhook", h.Receive)
}

// Receive handles one hook delivery end to end.
func (h *WebhookHandler) Receive(c fiber.Ctx) error {
	if len(h.secret) > 0 {
		if err := verifySignature(h.secret, c.Body(), c.Get("X-Hub-Signature-256")); err != nil {
			slog.Warn("webhook signature verification failed", "error", err, "ip", c.IP())
			return c.SendStatus(fiber.StatusUnauthorized)
		}
	}

	if id := c.Get("X-GitHub-Delivery"); id != "" && h.isDuplicate(id) {
		slog.Debug("duplicate hook delivery, ignoring", "delivery_id", id)
		return c.SendStatus(fiber.StatusOK)
	}

	// Classic hooks wrap the document in a form field; newer hooks post the
	// JSON body directly.
	body := []byte(c.FormValue("payload"))
	if len(body) == 0 {
		body = c.Body()
	}

	var ev domain.PushEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		slog.Error("discarding undecodable payload", "error", err, "ip", c.IP())
		return c.SendStatus(fiber.StatusOK)
	}

	h.pipeline.Process(c.Context(), &ev)
	return c.SendStatus(fiber.StatusOK)
}

// isDuplicate checks and records a delivery ID, pruning expired entries on
// each check. The map stays small: one entry per hook over the window.
func (h *WebhookHandler) isDuplicate(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for seen, receivedAt := range h.deliveries {
		if now.Sub(receivedAt) > deduplicationWindow {
			delete(h.deliveries, seen)
		}
	}

	if _, exists := h.deliveries[id]; exists {
		return true
	}
	h.deliveries[id] = now
	return false
}

// verifySignature checks the provider's HMAC-SHA256 body signature
// ("sha256=<hex>") in constant time.
func verifySignature(secret, body []byte, signature string) error {
	if signature == "" {
		return fmt.Errorf("missing signature header")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
