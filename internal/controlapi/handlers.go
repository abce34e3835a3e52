// Copyright 2025 James Ross
package controlapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/broker"
	"github.com/videoforge/engine/internal/config"
	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/obs"
	"github.com/videoforge/engine/internal/store"
)

type Handler struct {
	cfg   *config.Config
	jobs  *store.JobRepository
	execs *store.ExecutionRepository
	br    *broker.Broker
	log   *zap.Logger
}

func NewHandler(cfg *config.Config, jobs *store.JobRepository, execs *store.ExecutionRepository, br *broker.Broker, log *zap.Logger) *Handler {
	return &Handler{cfg: cfg, jobs: jobs, execs: execs, br: br, log: log}
}

// SubmitJob creates a Job row, an initial PENDING JobExecution, and
// enqueues a Task onto the lane named by the request's priority.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "content is required")
		return
	}

	claims, _ := r.Context().Value(contextKeyClaims).(*Claims)
	ownerID := ""
	if claims != nil {
		ownerID = claims.Subject
	}

	extra := req.Extra
	if len(extra) == 0 {
		extra = json.RawMessage(`{}`)
	}

	job := &domain.Job{
		OwnerID:      ownerID,
		Title:        req.Title,
		Content:      req.Content,
		LanguageID:   req.LanguageID,
		VoiceID:      req.VoiceID,
		TopicID:      req.TopicID,
		AccountID:    req.AccountID,
		SpeechSpeed:  req.SpeechSpeed,
		IsHorizontal: req.IsHorizontal,
		Extra:        extra,
	}
	created, err := h.jobs.Create(r.Context(), job)
	if err != nil {
		h.log.Error("create job failed", obs.Err(err), obs.String("request_id", RequestIDFromContext(r.Context())))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create job")
		return
	}

	execution, err := h.execs.Create(r.Context(), created.ID)
	if err != nil {
		h.log.Error("create execution failed", obs.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create execution")
		return
	}

	queue := h.queueFor(req.Priority)
	task := broker.Task{ExecutionID: execution.ID, JobID: created.ID, Queue: queue, CreationTime: execution.CreatedAt}
	if err := h.br.Enqueue(r.Context(), queue, task); err != nil {
		h.log.Error("enqueue task failed", obs.Err(err), obs.Int64("execution_id", execution.ID))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to enqueue job")
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitJobResponse{Job: created, Execution: execution})
}

func (h *Handler) queueFor(priority string) string {
	switch priority {
	case "image":
		return h.cfg.Queues.ImageGeneration
	case "maintenance":
		return h.cfg.Queues.Maintenance
	default:
		return h.cfg.Queues.VideoProcessing
	}
}

// GetJob returns a job and its most recent execution.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.URL.Path, "/api/v1/jobs/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid job id")
		return
	}
	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	execution, err := h.execs.LatestForJob(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, SubmitJobResponse{Job: job})
		return
	}
	writeJSON(w, http.StatusOK, SubmitJobResponse{Job: job, Execution: execution})
}

// GetExecution returns one execution's full status, including step
// history and result keys.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r.URL.Path, "/api/v1/executions/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid execution id")
		return
	}
	execution, err := h.execs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

// ListJobs paginates a user's jobs, newest first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	claims, _ := r.Context().Value(contextKeyClaims).(*Claims)
	opts := store.ListOptions{OrderBy: []store.Order{{Field: "created_at", Desc: true}}, Limit: limit}
	if claims != nil {
		opts.Filters = append(opts.Filters, store.Filter{Field: "user_id", Op: store.OpEq, Value: claims.Subject})
	}
	rows, err := h.jobs.List(r.Context(), opts)
	if err != nil {
		h.log.Error("list jobs failed", obs.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func pathID(path, prefix string) (int64, error) {
	idStr := strings.TrimPrefix(strings.TrimSuffix(path, "/"), prefix)
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
