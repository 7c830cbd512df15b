package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookbridge/hookbridge/internal/domain"
	"github.com/hookbridge/hookbridge/internal/port"
	"github.com/hookbridge/hookbridge/internal/service"
)

const pushPayload = `{
	"ref": "refs/heads/main",
	"before": "9049f1265b7d61be4a8904a9a27120d2064dab3b",
	"after": "abc1234567890",
	"repository": {"name": "widgets", "owner": {"name": "acme"}, "private": false},
	"commits": [{
		"id": "c1",
		"message": "fix bug",
		"url": "http://x/c1",
		"author": {"name": "Ann", "email": "ann@x.com"},
		"added": ["a.py"], "modified": [], "removed": []
	}]
}`

const deletePayload = `{
	"ref": "refs/heads/old",
	"after": "0000000000000000000000000000000000000000",
	"repository": {"name": "widgets", "owner": {"name": "acme"}, "private": false},
	"commits": []
}`

type stubMirror struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *stubMirror) Sync(ctx context.Context, owner, repo string, private bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *stubMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type stubDeliverer struct {
	mu      sync.Mutex
	batches [][]domain.ChangeRecord
}

func (d *stubDeliverer) Deliver(ctx context.Context, records []domain.ChangeRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, records)
	return nil
}

func (d *stubDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.batches)
}

func newTestApp(secret string) (*fiber.App, *stubMirror, *stubDeliverer) {
	mirror := &stubMirror{}
	deliverer := &stubDeliverer{}
	pipeline := service.NewPipeline(mirror, deliverer, nil, nil)

	app := fiber.New()
	NewWebhookHandler(pipeline, secret).Register(app)
	return app, mirror, deliverer
}

func formRequest(target, payload string) *http.Request {
	form := url.Values{"payload": {payload}}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestWebhookProcessesFormEncodedPush(t *testing.T) {
	app, mirror, deliverer := newTestApp("")

	resp, err := app.Test(formRequest("/", pushPayload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, mirror.count())
	require.Equal(t, 1, deliverer.count())
	assert.Equal(t, "c1", deliverer.batches[0][0].Revision)
}

func TestWebhookProcessesRawJSONPush(t *testing.T) {
	app, mirror, deliverer := newTestApp("")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(pushPayload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, mirror.count())
	assert.Equal(t, 1, deliverer.count())
}

func TestWebhookAcknowledgesMalformedPayload(t *testing.T) {
	app, mirror, deliverer := newTestApp("")

	resp, err := app.Test(formRequest("/", "{not json"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "provider retries would only resend the same document")
	assert.Zero(t, mirror.count())
	assert.Zero(t, deliverer.count())
}

func TestWebhookBranchDeletionDeliversNothing(t *testing.T) {
	app, mirror, deliverer := newTestApp("")

	resp, err := app.Test(formRequest("/", deletePayload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, mirror.count(), "the mirror still syncs on a deletion push")
	assert.Zero(t, deliverer.count(), "no network calls for an empty extraction")
}

func TestWebhookSwallowsPipelineFailure(t *testing.T) {
	app, mirror, deliverer := newTestApp("")
	mirror.err = port.ErrCloneFailed

	resp, err := app.Test(formRequest("/", pushPayload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, deliverer.count())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app, mirror, _ := newTestApp("hook-secret")

	req := formRequest("/", pushPayload)
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, mirror.count())
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	app, mirror, _ := newTestApp("hook-secret")

	resp, err := app.Test(formRequest("/", pushPayload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, mirror.count())
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	app, mirror, _ := newTestApp("hook-secret")

	form := url.Values{"payload": {pushPayload}}
	body := form.Encode()
	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write([]byte(body))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, mirror.count())
}

func TestWebhookSuppressesReplayedDeliveries(t *testing.T) {
	app, mirror, _ := newTestApp("")

	for i := 0; i < 3; i++ {
		req := formRequest("/", pushPayload)
		req.Header.Set("X-GitHub-Delivery", "delivery-123")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, 1, mirror.count(), "replays within the window must not reprocess")
}

func TestWebhookDistinctDeliveriesAllProcess(t *testing.T) {
	app, mirror, _ := newTestApp("")

	for _, id := range []string{"d1", "d2"} {
		req := formRequest("/", pushPayload)
		req.Header.Set("X-GitHub-Delivery", id)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, 2, mirror.count())
}
