package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nexthire/nexthire-api/internal/api/metrics"
	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/ports"
)

// JobHandler handles HTTP requests for job applications.
type JobHandler struct {
	service ports.JobService
}

func NewJobHandler(service ports.JobService) *JobHandler {
	return &JobHandler{service: service}
}

// --- Request / Response types ---

type createJobRequest struct {
	Position    string `json:"Position" validate:"required,max=200"`
	Company     string `json:"Company" validate:"required,max=200"`
	Phase       string `json:"Phase" validate:"max=100"`
	CL          *bool  `json:"CL" validate:"required"`
	Status      *bool  `json:"Status" validate:"required"`
	Note        string `json:"Note" validate:"max=5000"`
	AppliedDate string `json:"Applied date" validate:"required"`
}

type updateJobRequest struct {
	Position    *string `json:"Position"`
	Company     *string `json:"Company"`
	Phase       *string `json:"Phase"`
	CL          *bool   `json:"CL"`
	Status      *bool   `json:"Status"`
	Note        *string `json:"Note"`
	AppliedDate *string `json:"Applied date"`
}

// allowedUpdates are the only keys a PATCH body may carry.
var allowedUpdates = map[string]struct{}{
	"Phase":        {},
	"Status":       {},
	"Note":         {},
	"Position":     {},
	"Applied date": {},
	"CL":           {},
	"Company":      {},
}

type jobResponse struct {
	Job     *domain.Job `json:"job"`
	Message string      `json:"message"`
}

type jobListResponse struct {
	Jobs    []domain.Job `json:"jobs"`
	Count   int          `json:"count"`
	Message string       `json:"message"`
}

// Create handles POST /jobs/createjob.
//
// @Summary      Create a job application
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createJobRequest  true  "Job application"
// @Success      201   {object}  jobResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /jobs/createjob [post]
func (h *JobHandler) Create(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req createJobRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	job, err := h.service.Create(c.Request().Context(), user.ID, domain.Job{
		Position:    req.Position,
		Company:     req.Company,
		Phase:       req.Phase,
		CL:          *req.CL,
		Status:      *req.Status,
		Note:        req.Note,
		AppliedDate: req.AppliedDate,
	})
	if err != nil {
		return err
	}

	metrics.JobsCreatedTotal.Inc()
	return c.JSON(http.StatusCreated, jobResponse{Job: job, Message: "Job created successfully"})
}

// ListAll handles GET /jobs/getjobs.
//
// @Summary      List every job application
// @Tags         jobs
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  jobListResponse
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /jobs/getjobs [get]
func (h *JobHandler) ListAll(c echo.Context) error {
	jobs, err := h.service.ListAll(c.Request().Context())
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	return c.JSON(http.StatusOK, jobListResponse{Jobs: jobs, Count: len(jobs), Message: "Jobs retrieved successfully"})
}

// ListByOwner handles GET /jobs/:userId.
//
// @Summary      List a user's job applications
// @Tags         jobs
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User ID"
// @Success      200     {array}   domain.Job
// @Failure      403     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Router       /jobs/{userId} [get]
func (h *JobHandler) ListByOwner(c echo.Context) error {
	jobs, err := h.service.ListByOwner(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, jobs)
}

// Update handles PATCH /jobs/:id. Only the owner may update a job.
//
// @Summary      Update a job application
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Job ID"
// @Param        body  body      updateJobRequest  true  "Fields to update"
// @Success      200   {object}  domain.Job
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /jobs/{id} [patch]
func (h *JobHandler) Update(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	for key := range fields {
		if _, ok := allowedUpdates[key]; !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid updates")
		}
	}

	var req updateJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	job, err := h.service.Update(c.Request().Context(), user.ID, c.Param("id"), domain.JobPatch{
		Position:    req.Position,
		Company:     req.Company,
		Phase:       req.Phase,
		CL:          req.CL,
		Status:      req.Status,
		Note:        req.Note,
		AppliedDate: req.AppliedDate,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// Delete handles DELETE /jobs/:id. Only the owner may delete a job.
//
// @Summary      Delete a job application
// @Tags         jobs
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      string  true  "Job ID"
// @Success      200 {object}  messageResponse
// @Failure      404 {object}  map[string]string
// @Router       /jobs/{id} [delete]
func (h *JobHandler) Delete(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Job deleted successfully"})
}
