package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quoteajob/quoteajob/internal/services"
)

// AdminHandler serves the administrator dashboard.
type AdminHandler struct {
	adminService services.IAdminService
}

func NewAdminHandler(adminService services.IAdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// Stats handles GET /v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListJobs handles GET /v1/admin/jobs
func (h *AdminHandler) ListJobs(c *gin.Context) {
	jobs, err := h.adminService.ListJobs(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch jobs")
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// RecomputeJob handles POST /v1/admin/jobs/:id/recompute
func (h *AdminHandler) RecomputeJob(c *gin.Context) {
	if err := h.adminService.RequestRecompute(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Failed to schedule recompute")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Recompute scheduled"})
}
