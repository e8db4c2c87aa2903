// Package server exposes the daemon's HTTP surface: webhook ingestion
// for GitHub and Jira plus a small admin API over scheduled tasks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avyuktsoni0731/continuum/internal/logging"
	"github.com/avyuktsoni0731/continuum/internal/policy"
	"github.com/avyuktsoni0731/continuum/internal/trigger"
)

// maxPayloadBytes caps webhook request bodies.
const maxPayloadBytes = 1 << 20

// Server provides the HTTP API for the continuum daemon.
type Server struct {
	monitor  *trigger.Monitor
	ingestor *trigger.Ingestor
	addr     string
	server   *http.Server
	log      *logging.Logger
}

// New creates an HTTP server over the monitor and ingestor.
func New(monitor *trigger.Monitor, ingestor *trigger.Ingestor, addr string) *Server {
	return &Server{
		monitor:  monitor,
		ingestor: ingestor,
		addr:     addr,
		log:      logging.Component("server"),
	}
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/webhooks/github", s.handleGitHubWebhook)
	mux.HandleFunc("/webhooks/jira", s.handleJiraWebhook)

	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/tasks/", s.handleTaskByID)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.log.Infof("listening on %s", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// --- Webhook handlers ---

type webhookResponse struct {
	Processed bool `json:"processed"`
}

func (s *Server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	processed := s.ingestor.HandleGitHub(r.Context(), deliveryID, payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(webhookResponse{Processed: processed})
}

func (s *Server) handleJiraWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	processed := s.ingestor.HandleJira(r.Context(), payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(webhookResponse{Processed: processed})
}

// --- Task handlers ---

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTask(w, r)
	case http.MethodGet:
		s.listTasks(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "task id required", http.StatusBadRequest)
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.monitor.Remove(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"removed"}`))
}

type createTaskRequest struct {
	TaskType    string            `json:"task_type"`
	TaskKey     string            `json:"task_key"`
	OwnerID     string            `json:"owner_id"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.TaskKey == "" || req.ScheduledAt.IsZero() {
		http.Error(w, "task_key and scheduled_at required", http.StatusBadRequest)
		return
	}

	task, err := s.monitor.Add(trigger.ScheduledTask{
		TaskType:    policy.TaskType(req.TaskType),
		TaskKey:     req.TaskKey,
		OwnerID:     req.OwnerID,
		ScheduledAt: req.ScheduledAt,
		Metadata:    req.Metadata,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.monitor.List()
	if tasks == nil {
		tasks = []trigger.ScheduledTask{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tasks)
}
