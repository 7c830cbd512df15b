package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hookbridge/hookbridge/internal/domain"
)

// Notification modes. "problem" only reports a failure that follows a prior
// success for the same repository, so a persistently broken hook does not
// flood the channel.
const (
	ModeAll     = "all"
	ModeFailing = "failing"
	ModeProblem = "problem"
)

// ChatNotifier posts a one-line message about each pipeline outcome to a
// chat service's incoming-webhook URL (JSON {"text": ...}). It is a terminal
// side effect: errors are logged, never propagated.
type ChatNotifier struct {
	url    string
	mode   string
	client *http.Client

	mu      sync.Mutex
	lastBad map[string]bool // repo -> previous outcome failed
}

// NewChatNotifier creates a notifier for the given webhook URL. Unknown
// modes fall back to ModeAll.
func NewChatNotifier(url, mode string) *ChatNotifier {
	switch mode {
	case ModeAll, ModeFailing, ModeProblem:
	default:
		mode = ModeAll
	}
	return &ChatNotifier{
		url:     url,
		mode:    mode,
		client:  &http.Client{Timeout: 10 * time.Second},
		lastBad: map[string]bool{},
	}
}

// Notify implements port.Notifier.
func (n *ChatNotifier) Notify(ctx context.Context, outcome domain.Outcome) {
	if !n.shouldNotify(outcome) {
		return
	}

	body, _ := json.Marshal(map[string]string{"text": message(outcome)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("notifier: build request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Error("notifier: post failed", "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		slog.Error("notifier: unexpected status", "status", resp.StatusCode)
	}
}

func (n *ChatNotifier) shouldNotify(outcome domain.Outcome) bool {
	n.mu.Lock()
	wasBad := n.lastBad[outcome.Repo]
	n.lastBad[outcome.Repo] = outcome.Failed()
	n.mu.Unlock()

	switch n.mode {
	case ModeFailing:
		return outcome.Failed()
	case ModeProblem:
		return outcome.Failed() && !wasBad
	default:
		return true
	}
}

func message(outcome domain.Outcome) string {
	if outcome.Failed() {
		return fmt.Sprintf("%s/%s (%s): processing failed after %s: %v",
			outcome.Owner, outcome.Repo, outcome.Ref, outcome.Stage, outcome.Err)
	}
	return fmt.Sprintf("%s/%s (%s): delivered %d change(s) to the build master",
		outcome.Owner, outcome.Repo, outcome.Ref, outcome.Records)
}
