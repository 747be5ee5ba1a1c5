package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"proctor/internal/broadcast"
	"proctor/internal/config"
	"proctor/internal/store"
	"proctor/internal/violation"
)

const userAgent = "proctor/0.1"

// New returns an ntfy notifier, or broadcast.Nop when no topic is configured.
func New(cfg config.Broadcast) broadcast.Broadcaster {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return broadcast.Nop{}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Ntfy posts selected broadcast messages to an ntfy topic.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// Publish implements broadcast.Broadcaster. Messages that do not warrant a
// push are ignored.
func (n *Ntfy) Publish(ctx context.Context, msg broadcast.Message) error {
	data, ok := render(msg)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func render(msg broadcast.Message) (payload, bool) {
	switch msg.Type {
	case broadcast.TypeStatusChange:
		if stringField(msg.Data, "status") != string(store.StatusSuspended) {
			return payload{}, false
		}
		reason := "unspecified"
		if meta, ok := msg.Data["metadata"].(map[string]any); ok {
			if r := stringField(meta, "reason"); r != "" {
				reason = r
			}
		}
		return payload{
			title:    "Proctor - Interview Suspended",
			message:  fmt.Sprintf("Interview %d suspended (%s)", msg.InterviewID, reason),
			tags:     []string{"proctor", "suspended"},
			priority: "high",
		}, true
	case broadcast.TypeViolation:
		if stringField(msg.Data, "severity") != string(violation.SeverityCritical) {
			return payload{}, false
		}
		message := fmt.Sprintf("Interview %d: %s", msg.InterviewID, stringField(msg.Data, "type"))
		if details := stringField(msg.Data, "details"); details != "" {
			message += "\n" + details
		}
		return payload{
			title:   "Proctor - Critical Violation",
			message: message,
			tags:    []string{"proctor", "violation", "critical"},
		}, true
	default:
		return payload{}, false
	}
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)
	return strings.TrimSpace(value)
}

func (n *Ntfy) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
