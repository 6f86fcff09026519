package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"persona-engine/internal/entity"
	"persona-engine/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
}

func NewHandler(jobSvc *service.JobService) *Handler {
	return &Handler{jobSvc: jobSvc}
}

type createJobDTO struct {
	Type  string         `json:"type"`
	Input map[string]any `json:"input"`
}

type createJobResp struct {
	ID string `json:"id"`
}

type jobResp struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Status      entity.JobStatus `json:"status"`
	Input       map[string]any   `json:"input"`
	Output      map[string]any   `json:"output,omitempty"`
	Error       *string          `json:"error,omitempty"`
	CreatedAt   string           `json:"created_at"`
	StartedAt   *string          `json:"started_at,omitempty"`
	CompletedAt *string          `json:"completed_at,omitempty"`
}

// CreateJob godoc
// @Summary Enqueue a new job
// @Description Creates the job in the store (pending) and signals a worker of the matching type.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "job payload"
// @Success 201 {object} createJobResp
// @Failure 400 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	rawInput, err := json.Marshal(dto.Input)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid input")
		return
	}

	id, err := h.jobSvc.CreateJob(r.Context(), service.CreateJobRequest{
		Type:  dto.Type,
		Input: rawInput,
	})
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createJobResp{ID: id.String()})
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}

	resp := jobResp{
		ID:          j.ID.String(),
		Type:        j.Type,
		Status:      j.Status,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		StartedAt:   formatTime(j.StartedAt),
		CompletedAt: formatTime(j.CompletedAt),
	}
	if len(j.Input) > 0 {
		_ = json.Unmarshal(j.Input, &resp.Input)
	}
	if j.Status == entity.StatusCompleted && len(j.Output) > 0 {
		_ = json.Unmarshal(j.Output, &resp.Output)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetJobResult godoc
// @Summary Get a completed job's output
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/result [get]
func (h *Handler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	if j.Status != entity.StatusCompleted {
		writeErr(w, http.StatusConflict, "job not completed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(j.Output)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
