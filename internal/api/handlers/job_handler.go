package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quoteajob/quoteajob/internal/api/middleware"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/services"
)

// JobHandler handles REST requests for jobs.
type JobHandler struct {
	jobService services.IJobService
}

func NewJobHandler(jobService services.IJobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// ListJobs handles GET /v1/jobs?category=&location=&page=&limit=
func (h *JobHandler) ListJobs(c *gin.Context) {
	// Unparseable numbers fall back to the listing defaults.
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.jobService.ListJobs(c.Request.Context(), models.JobFilter{
		Category: c.Query("category"),
		Location: c.Query("location"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		respondError(c, err, "Failed to fetch jobs")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetJob handles GET /v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to fetch job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// CreateJob handles POST /v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req services.NewJob
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.jobService.CreateJob(c.Request.Context(), middleware.CallerID(c), req)
	if err != nil {
		respondError(c, err, "Failed to create job")
		return
	}
	c.JSON(http.StatusCreated, job)
}

// UpdateJob handles PUT /v1/jobs/:id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	var req models.JobUpdate
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.jobService.UpdateJob(c.Request.Context(), c.Param("id"), middleware.CallerID(c), req)
	if err != nil {
		respondError(c, err, "Failed to update job")
		return
	}
	c.JSON(http.StatusOK, job)
}

// DeleteJob handles DELETE /v1/jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	if err := h.jobService.DeleteJob(c.Request.Context(), c.Param("id"), middleware.CallerID(c)); err != nil {
		respondError(c, err, "Failed to delete job")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted successfully"})
}
