package trigger

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/avyuktsoni0731/continuum/internal/logging"
	"github.com/avyuktsoni0731/continuum/internal/policy"
)

// githubActions are the pull_request actions worth re-evaluating.
var githubActions = map[string]struct{}{
	"opened":           {},
	"synchronize":      {},
	"labeled":          {},
	"assigned":         {},
	"review_requested": {},
	"closed":           {},
}

// Ingestor turns webhook payloads into trigger events, deduplicating by
// each change's external identity so redelivery is at-most-once.
type Ingestor struct {
	dedup   *Dedup
	handler Handler
	log     *logging.Logger
}

// NewIngestor creates an ingestor sharing the given dedup set.
func NewIngestor(dedup *Dedup, handler Handler) *Ingestor {
	return &Ingestor{
		dedup:   dedup,
		handler: handler,
		log:     logging.Component("ingestor"),
	}
}

// HandleGitHub processes a GitHub pull_request webhook. It reports
// whether the payload entered the pipeline; malformed payloads,
// uninteresting actions, and duplicates are dropped.
func (i *Ingestor) HandleGitHub(ctx context.Context, deliveryID string, payload []byte) bool {
	action := gjson.GetBytes(payload, "action").String()
	if _, ok := githubActions[action]; !ok {
		i.log.Debugf("ignoring github action %q", action)
		return false
	}

	number := gjson.GetBytes(payload, "pull_request.number")
	if !number.Exists() {
		i.log.Warn("github payload has no pull request number, dropping")
		return false
	}
	taskKey := number.String()

	identity := deliveryID
	if identity == "" {
		identity = fmt.Sprintf("github:pr-%s:%s", taskKey,
			gjson.GetBytes(payload, "pull_request.updated_at").String())
	}
	if i.dedup.Seen(identity) {
		i.log.Debugf("duplicate github delivery %s, dropping", identity)
		return false
	}

	change := &ChangeDetails{
		Field: action,
		By:    gjson.GetBytes(payload, "sender.login").String(),
	}
	if action == "labeled" {
		change.Field = "labels"
		change.To = gjson.GetBytes(payload, "label.name").String()
	}

	ownerID := gjson.GetBytes(payload, "pull_request.assignee.login").String()
	if ownerID == "" {
		ownerID = gjson.GetBytes(payload, "pull_request.user.login").String()
	}

	event := NewEvent(TypeWebhook, "github", EventData{
		TaskType: policy.TaskPR,
		TaskKey:  taskKey,
		OwnerID:  ownerID,
		Change:   change,
		Metadata: map[string]string{
			"action": action,
			"title":  gjson.GetBytes(payload, "pull_request.title").String(),
			"url":    gjson.GetBytes(payload, "pull_request.html_url").String(),
		},
	})

	if err := i.handler.Process(ctx, event); err != nil {
		i.log.Errorf("processing github event for PR %s failed: %v", taskKey, err)
	}
	return true
}

// HandleJira processes a Jira issue webhook. The first changelog item
// becomes the change summary.
func (i *Ingestor) HandleJira(ctx context.Context, payload []byte) bool {
	webhookEvent := gjson.GetBytes(payload, "webhookEvent").String()
	if !strings.HasPrefix(webhookEvent, "jira:issue") {
		i.log.Debugf("ignoring jira event %q", webhookEvent)
		return false
	}

	key := gjson.GetBytes(payload, "issue.key")
	if !key.Exists() || key.String() == "" {
		i.log.Warn("jira payload has no issue key, dropping")
		return false
	}
	taskKey := key.String()

	updated := gjson.GetBytes(payload, "issue.fields.updated").String()
	if updated == "" {
		updated = gjson.GetBytes(payload, "timestamp").String()
	}
	identity := fmt.Sprintf("jira:%s:%s", taskKey, updated)
	if i.dedup.Seen(identity) {
		i.log.Debugf("duplicate jira event %s, dropping", identity)
		return false
	}

	var change *ChangeDetails
	if item := gjson.GetBytes(payload, "changelog.items.0"); item.Exists() {
		change = &ChangeDetails{
			Field: item.Get("field").String(),
			From:  item.Get("fromString").String(),
			To:    item.Get("toString").String(),
			By:    gjson.GetBytes(payload, "user.displayName").String(),
		}
	}

	event := NewEvent(TypeWebhook, "jira", EventData{
		TaskType: policy.TaskIssue,
		TaskKey:  taskKey,
		OwnerID:  gjson.GetBytes(payload, "issue.fields.assignee.name").String(),
		Change:   change,
		Metadata: map[string]string{
			"event":   webhookEvent,
			"summary": gjson.GetBytes(payload, "issue.fields.summary").String(),
		},
	})

	if err := i.handler.Process(ctx, event); err != nil {
		i.log.Errorf("processing jira event for %s failed: %v", taskKey, err)
	}
	return true
}
