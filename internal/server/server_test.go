package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avyuktsoni0731/continuum/internal/sched"
	"github.com/avyuktsoni0731/continuum/internal/trigger"
)

const githubPayload = `{
	"action": "opened",
	"sender": {"login": "carol-gh"},
	"pull_request": {
		"number": 42,
		"title": "Fix race in scheduler",
		"updated_at": "2026-03-10T14:00:00Z",
		"user": {"login": "alice-gh"}
	}
}`

const jiraPayload = `{
	"webhookEvent": "jira:issue_updated",
	"issue": {
		"key": "PROJ-7",
		"fields": {"summary": "Checkout flow broken", "updated": "2026-03-10T14:00:00.000+0000"}
	}
}`

type memStore struct {
	tasks map[string]trigger.ScheduledTask
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]trigger.ScheduledTask)}
}

func (m *memStore) SaveTask(task trigger.ScheduledTask) error {
	m.tasks[task.ID] = task
	return nil
}

func (m *memStore) DeleteTask(id string) error {
	if _, ok := m.tasks[id]; !ok {
		return errors.New("task not found")
	}
	delete(m.tasks, id)
	return nil
}

func (m *memStore) ListTasks() ([]trigger.ScheduledTask, error) {
	out := make([]trigger.ScheduledTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		out = append(out, task)
	}
	return out, nil
}

type noopHandler struct{}

func (noopHandler) Process(ctx context.Context, event trigger.Event) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	scheduler := sched.New()
	if err := scheduler.SetInterval(time.Hour); err != nil {
		t.Fatalf("SetInterval: %v", err)
	}

	monitor := trigger.NewMonitor(newMemStore(), noopHandler{}, scheduler)
	ingestor := trigger.NewIngestor(trigger.NewDedup(100), noopHandler{})
	return New(monitor, ingestor, "127.0.0.1:0")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestGitHubWebhook(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(githubPayload))
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	var resp webhookResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Processed {
		t.Error("expected payload to be processed")
	}
}

func TestGitHubWebhook_Redelivery(t *testing.T) {
	s := newTestServer(t)

	for i, wantProcessed := range []bool{true, false} {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(githubPayload))
		req.Header.Set("X-GitHub-Delivery", "delivery-1")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		var resp webhookResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response %d: %v", i, err)
		}
		if resp.Processed != wantProcessed {
			t.Errorf("delivery %d: processed = %v, want %v", i, resp.Processed, wantProcessed)
		}
	}
}

func TestGitHubWebhook_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/github", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestJiraWebhook(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/jira", strings.NewReader(jiraPayload))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	var resp webhookResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Processed {
		t.Error("expected payload to be processed")
	}
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	body, _ := json.Marshal(createTaskRequest{
		TaskType:    "pr",
		TaskKey:     "42",
		OwnerID:     "alice",
		ScheduledAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	})

	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var created trigger.ScheduledTask
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decoding created task: %v", err)
	}
	if created.ID == "" {
		t.Error("created task should have an id")
	}

	req = httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var listed []trigger.ScheduledTask
	if err := json.NewDecoder(w.Body).Decode(&listed); err != nil {
		t.Fatalf("decoding task list: %v", err)
	}
	if len(listed) != 1 || listed[0].TaskKey != "42" {
		t.Errorf("listed = %+v", listed)
	}

	req = httptest.NewRequest(http.MethodDelete, "/tasks/"+created.ID, nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("delete status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/tasks/"+created.ID, nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"task_key":`},
		{"missing key", `{"task_type": "pr", "scheduled_at": "2026-03-10T15:00:00Z"}`},
		{"missing time", `{"task_type": "pr", "task_key": "42"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestListTasks_Empty(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("empty list body = %q, want []", got)
	}
}
