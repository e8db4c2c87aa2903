package delegation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avyuktsoni0731/continuum/internal/logging"
)

// Notification is the structured payload handed to a notifier when work is
// delegated or someone needs a heads-up.
type Notification struct {
	Teammate        Teammate          `json:"teammate"`
	TaskType        string            `json:"task_type"`
	TaskID          string            `json:"task_id"`
	TaskTitle       string            `json:"task_title"`
	ActionRequested string            `json:"action_requested"`
	Urgency         string            `json:"urgency"` // high, medium, low
	Context         map[string]string `json:"context,omitempty"`
}

// Notifier delivers notifications. Implementations retry transient
// failures themselves; a returned error is final.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ErrNoRecipient means the teammate has no reachable handle.
var ErrNoRecipient = errors.New("teammate has no chat handle")

const (
	slackPostMessageURL = "https://slack.com/api/chat.postMessage"
	maxAttempts         = 3
	initialBackoff      = time.Second
)

// SlackNotifier posts delegation messages as Slack DMs. Transient failures
// (network errors, 5xx, rate limits) are retried with exponential backoff;
// payload or recipient problems are returned immediately.
type SlackNotifier struct {
	token   string
	client  *http.Client
	log     *logging.Logger
	baseURL string
	backoff time.Duration
}

// NewSlackNotifier creates a notifier with the given bot token.
func NewSlackNotifier(token string) *SlackNotifier {
	return &SlackNotifier{
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     logging.Component("notifier"),
		baseURL: slackPostMessageURL,
		backoff: initialBackoff,
	}
}

type slackMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Notify sends the notification as a DM to the teammate.
func (s *SlackNotifier) Notify(ctx context.Context, n Notification) error {
	if s.token == "" {
		return errors.New("slack token not configured")
	}
	if n.Teammate.SlackID == "" {
		return fmt.Errorf("%w: %s", ErrNoRecipient, n.Teammate.Username)
	}

	body, err := json.Marshal(slackMessage{
		Channel: n.Teammate.SlackID,
		Text:    formatMessage(n),
	})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	backoff := s.backoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.post(ctx, body)
		if err == nil {
			s.log.InfoCtx("notification sent", map[string]any{
				"teammate": n.Teammate.Username,
				"task":     n.TaskID,
				"attempt":  attempt,
			})
			return nil
		}

		if !isTransient(err) {
			return err
		}
		lastErr = err

		if attempt < maxAttempts {
			s.log.Warnf("notify attempt %d failed: %v, retrying in %s", attempt, err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("notify after %d attempts: %w", maxAttempts, lastErr)
}

// transientError marks a failure worth retrying.
type transientError struct{ err error }

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &transientError{fmt.Errorf("posting to slack: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &transientError{fmt.Errorf("slack returned %s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %s", resp.Status)
	}

	var sr slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return &transientError{fmt.Errorf("decoding slack response: %w", err)}
	}
	if !sr.OK {
		if sr.Error == "ratelimited" {
			return &transientError{errors.New("slack rate limit")}
		}
		return fmt.Errorf("slack API error: %s", sr.Error)
	}
	return nil
}

var urgencyMarkers = map[string]string{
	"high":   "🔴",
	"medium": "🟡",
	"low":    "🟢",
}

func formatMessage(n Notification) string {
	marker, ok := urgencyMarkers[n.Urgency]
	if !ok {
		marker = "⚪"
	}

	lines := []string{
		fmt.Sprintf("%s *Task Delegation*", marker),
		"",
		fmt.Sprintf("*Task:* %s %s", strings.ToUpper(n.TaskType), n.TaskID),
		fmt.Sprintf("*Title:* %s", n.TaskTitle),
		fmt.Sprintf("*Action Requested:* %s", n.ActionRequested),
		fmt.Sprintf("*Urgency:* %s", strings.ToUpper(n.Urgency)),
	}

	if len(n.Context) > 0 {
		lines = append(lines, "", "*Context:*")
		if v := n.Context["criticality_score"]; v != "" {
			lines = append(lines, "• Criticality Score: "+v)
		}
		if v := n.Context["reasoning"]; v != "" {
			lines = append(lines, "• Why: "+v)
		}
		if v := n.Context["url"]; v != "" {
			lines = append(lines, "• Link: "+v)
		}
	}

	return strings.Join(lines, "\n")
}
