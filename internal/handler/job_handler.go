package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hagwonmatch/internal/job"
	"github.com/hitoshi/hagwonmatch/internal/middleware"
	"github.com/hitoshi/hagwonmatch/internal/model"
)

// JobService は求人と応募のサービスインターフェース。
type JobService interface {
	PostJob(ctx context.Context, input job.JobInput) (*model.Job, error)
	ListOwnJobs(ctx context.Context) ([]*model.Job, error)
	SetJobActive(ctx context.Context, jobID string, active bool) error
	BrowseJobs(ctx context.Context, limit int) ([]*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	Apply(ctx context.Context, jobID, message string) (*model.Application, error)
	ListOwnApplications(ctx context.Context) ([]*model.Application, error)
	ListApplicationsForJob(ctx context.Context, jobID string) ([]*model.Application, error)
	UpdateApplicationStatus(ctx context.Context, applicationID string, status model.ApplicationStatus) error
	Recommend(ctx context.Context, teacherID string, limit int) ([]model.JobRecommendation, error)
}

// JobHandler は求人と応募のHTTPハンドラー。
type JobHandler struct {
	service JobService
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(service JobService) *JobHandler {
	return &JobHandler{service: service}
}

type setActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

type applyRequest struct {
	Message string `json:"message"`
}

type updateStatusRequest struct {
	Status model.ApplicationStatus `json:"status"`
}

// BrowseJobs は掲載中の求人一覧を返す。
// GET /api/jobs?limit=N
func (h *JobHandler) BrowseJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteError(w, r, model.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	jobs, err := h.service.BrowseJobs(r.Context(), limit)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// GetJob は求人を1件返す。
// GET /api/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.service.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

// PostJob は求人を掲載する。
// POST /api/jobs
func (h *JobHandler) PostJob(w http.ResponseWriter, r *http.Request) {
	var input job.JobInput
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	j, err := h.service.PostJob(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobResponse(j))
}

// ListOwnJobs は自校の求人一覧を返す。
// GET /api/jobs/mine
func (h *JobHandler) ListOwnJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListOwnJobs(r.Context())
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// SetJobActive は求人の掲載状態を変更する。
// PATCH /api/jobs/{id}
func (h *JobHandler) SetJobActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if req.IsActive == nil {
		middleware.WriteError(w, r, model.NewValidationError("is_active is required"))
		return
	}

	if err := h.service.SetJobActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recommend は講師向けの推薦求人を返す。推薦は未実装のため501を返す。
// GET /api/jobs/recommended
func (h *JobHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	recs, err := h.service.Recommend(r.Context(), userID, 0)
	if errors.Is(err, model.ErrNotImplemented) {
		middleware.WriteErrorResponse(w, http.StatusNotImplemented, &model.APIError{
			Code:     "NOT_IMPLEMENTED",
			Message:  "Job recommendations are not available yet",
			Category: "job",
			Action:   "Browse the current listings instead.",
		})
		return
	}
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// Apply は求人に応募する。
// POST /api/jobs/{id}/applications
func (h *JobHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	app, err := h.service.Apply(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationResponse(app))
}

// ListApplicationsForJob は自校の求人への応募一覧を返す。
// GET /api/jobs/{id}/applications
func (h *JobHandler) ListApplicationsForJob(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListApplicationsForJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}

// ListOwnApplications は自分の応募一覧を返す。
// GET /api/applications
func (h *JobHandler) ListOwnApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListOwnApplications(r.Context())
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationResponses(apps))
}

// UpdateApplicationStatus は応募のステータスを更新する。
// PATCH /api/applications/{id}/status
func (h *JobHandler) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	if err := h.service.UpdateApplicationStatus(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
