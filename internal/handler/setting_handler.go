package handler

import (
	"errors"
	"net/http"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/middleware"
	"github.com/casedeck/casedeck-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// SettingHandler handles generation setting API endpoints
type SettingHandler struct {
	settings *service.SettingService
}

// NewSettingHandler creates a new SettingHandler
func NewSettingHandler(settingSvc *service.SettingService) *SettingHandler {
	return &SettingHandler{settings: settingSvc}
}

// ListSettings handles GET /api/v1/settings
func (h *SettingHandler) ListSettings(c *gin.Context) {
	settings, err := h.settings.ListSettings()
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to list settings", err)
		return
	}
	common.SuccessResponse(c, settings, nil)
}

// GetSetting handles GET /api/v1/settings/:key
func (h *SettingHandler) GetSetting(c *gin.Context) {
	setting, err := h.settings.GetSetting(c.Param("key"))
	if err != nil {
		if errors.Is(err, common.ErrSettingNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "Setting not found", err)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to load setting", err)
		return
	}
	common.SuccessResponse(c, setting, nil)
}

// UpdateSettingRequest payload for a setting update
type UpdateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

// UpdateSetting handles PUT /api/v1/settings/:key
// Bumps the setting version and starts the propagation stamping the new
// config fingerprint across active case studies.
func (h *SettingHandler) UpdateSetting(c *gin.Context) {
	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	setting, jobID, err := h.settings.UpdateSetting(c.Param("key"), req.Value, middleware.GetUserID(c))
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to update setting", err)
		return
	}
	common.AcceptedResponse(c, gin.H{"setting": setting, "job_id": jobID})
}
