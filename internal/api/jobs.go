package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/edi"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/queue"
	"github.com/go-chi/chi/v5"
)

type JobHandler struct {
	queue *queue.Queue
}

func NewJobHandler(q *queue.Queue) *JobHandler {
	return &JobHandler{queue: q}
}

type enqueueRequest struct {
	ClaimID string `json:"claim_id"`
}

type enqueueResponse struct {
	JobID   string          `json:"job_id"`
	ClaimID string          `json:"claim_id"`
	State   domain.JobState `json:"state"`
}

// Enqueue hands a claim to the submission queue. Validation failures come
// back as 422 with the rule messages; they are never retried.
func (h *JobHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClaimID == "" {
		respondError(w, http.StatusBadRequest, "claim_id is required")
		return
	}

	job, err := h.queue.Enqueue(r.Context(), req.ClaimID, actorFrom(r))
	if err != nil {
		var verr *edi.ValidationError
		switch {
		case errors.As(err, &verr):
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":  "claim failed validation",
				"errors": verr.Errors,
			})
		case strings.Contains(err.Error(), "not found"), strings.Contains(err.Error(), "unknown insurer"):
			respondError(w, http.StatusNotFound, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to enqueue submission")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, enqueueResponse{
		JobID:   job.ID,
		ClaimID: job.ClaimID,
		State:   job.State,
	})
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.queue.List()

	if state := r.URL.Query().Get("state"); state != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.State == domain.JobState(state) {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	respondJSON(w, http.StatusOK, jobs)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job := h.queue.Get(id)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// Retry re-enqueues a failed job with a fresh attempt budget.
func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.queue.Retry(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queue.Stats())
}

// actorFrom builds the audit attribution from request headers set by the
// authenticating edge.
func actorFrom(r *http.Request) domain.Actor {
	actor := domain.Actor{
		OrgID:     r.Header.Get("X-Org-ID"),
		UserID:    r.Header.Get("X-User-ID"),
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
	if actor.UserID == "" {
		actor.UserID = "anonymous"
	}
	return actor
}
