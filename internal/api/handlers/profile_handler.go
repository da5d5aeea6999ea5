package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quoteajob/quoteajob/internal/api/middleware"
	"github.com/quoteajob/quoteajob/internal/models"
	"github.com/quoteajob/quoteajob/internal/services"
)

// ProfileHandler handles the caller's own profile.
type ProfileHandler struct {
	profileService services.IProfileService
}

func NewProfileHandler(profileService services.IProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

type insuranceUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// GetProfile handles GET /v1/profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	user, err := h.profileService.GetProfile(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		respondError(c, err, "Failed to fetch profile")
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /v1/profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req models.ProfileFields
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.profileService.UpdateProfile(c.Request.Context(), middleware.CallerID(c), req)
	if err != nil {
		respondError(c, err, "Failed to update profile")
		return
	}
	c.JSON(http.StatusOK, user)
}

// RequestInsuranceUpload handles POST /v1/profile/insurance
func (h *ProfileHandler) RequestInsuranceUpload(c *gin.Context) {
	var req insuranceUploadRequest
	if !bindJSON(c, &req) {
		return
	}
	upload, err := h.profileService.RequestInsuranceUpload(c.Request.Context(), middleware.CallerID(c), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err, "Failed to prepare upload")
		return
	}
	c.JSON(http.StatusOK, upload)
}
