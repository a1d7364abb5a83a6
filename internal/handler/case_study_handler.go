package handler

import (
	"errors"
	"net/http"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/middleware"
	"github.com/casedeck/casedeck-backend/internal/service"
	"github.com/casedeck/casedeck-backend/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// CaseStudyHandler handles case study API endpoints
type CaseStudyHandler struct {
	caseStudies *service.CaseStudyService
	lifecycle   *service.LifecycleService
	ledger      *service.VersionService
}

// NewCaseStudyHandler creates a new CaseStudyHandler
func NewCaseStudyHandler(
	caseStudySvc *service.CaseStudyService,
	lifecycleSvc *service.LifecycleService,
	ledger *service.VersionService,
) *CaseStudyHandler {
	return &CaseStudyHandler{
		caseStudies: caseStudySvc,
		lifecycle:   lifecycleSvc,
		ledger:      ledger,
	}
}

// CreateCaseStudyRequest payload for case study creation (generation pipeline)
type CreateCaseStudyRequest struct {
	Title      string                 `json:"title" binding:"required,max=255"`
	Summary    string                 `json:"summary"`
	Sections   map[string]interface{} `json:"sections"`
	Tags       []string               `json:"tags"`
	SourceURL  string                 `json:"source_url" binding:"required,url"`
	SourceName string                 `json:"source_name" binding:"required,max=100"`
	ChartURL   string                 `json:"chart_url" binding:"omitempty,url"`
}

// CreateCaseStudy handles POST /api/v1/case-studies
func (h *CaseStudyHandler) CreateCaseStudy(c *gin.Context) {
	var req CreateCaseStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cs := &domain.CaseStudy{
		Title:      req.Title,
		Summary:    req.Summary,
		Sections:   domain.JSONMap(req.Sections),
		Tags:       domain.StringList(req.Tags),
		SourceURL:  req.SourceURL,
		SourceName: req.SourceName,
		ChartURL:   req.ChartURL,
		CreatedBy:  middleware.GetUserID(c),
	}
	if err := h.caseStudies.CreateCaseStudy(cs); err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to create case study", err)
		return
	}
	common.CreatedResponse(c, cs)
}

// GetCaseStudy handles GET /api/v1/case-studies/:id
// Soft-deleted records are only returned to admins asking for them.
func (h *CaseStudyHandler) GetCaseStudy(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true" && middleware.GetRole(c) == "admin"

	cs, err := h.caseStudies.GetCaseStudy(c.Param("id"), includeDeleted)
	if err != nil {
		if errors.Is(err, common.ErrCaseStudyNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "Case study not found", err)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to load case study", err)
		return
	}
	common.SuccessResponse(c, cs, nil)
}

// ListCaseStudies handles GET /api/v1/case-studies
func (h *CaseStudyHandler) ListCaseStudies(c *gin.Context) {
	page := ginutil.QueryInt(c, "page", 1)
	limit := ginutil.QueryInt(c, "limit", 20)
	includeDeleted := c.Query("include_deleted") == "true" && middleware.GetRole(c) == "admin"

	items, total, err := h.caseStudies.ListCaseStudies(page, limit, includeDeleted)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to list case studies", err)
		return
	}
	common.SuccessResponse(c, items, &common.Meta{Page: page, Limit: limit, Total: total})
}

// UpdateCaseStudyRequest payload for field updates
type UpdateCaseStudyRequest struct {
	Fields     map[string]interface{} `json:"fields" binding:"required"`
	ChangeType string                 `json:"change_type" binding:"required,oneof=content metadata visuals full_regenerate"`
	Reason     string                 `json:"reason" binding:"max=255"`
}

// UpdateCaseStudy handles PATCH /api/v1/case-studies/:id
func (h *CaseStudyHandler) UpdateCaseStudy(c *gin.Context) {
	var req UpdateCaseStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cs, version, err := h.caseStudies.UpdateCaseStudy(
		c.Param("id"), req.Fields, req.ChangeType, req.Reason, middleware.GetUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrCaseStudyNotFound):
			common.ErrorResponse(c, http.StatusNotFound, "Case study not found", err)
		case errors.Is(err, common.ErrAlreadyDeleted):
			common.ErrorResponse(c, http.StatusConflict, "Case study is deleted", err)
		case errors.Is(err, common.ErrProtectedField), errors.Is(err, common.ErrInvalidInput):
			common.ErrorResponse(c, http.StatusBadRequest, "Invalid update request", err)
		default:
			common.ErrorResponse(c, http.StatusInternalServerError, "Failed to update case study", err)
		}
		return
	}

	resp := gin.H{"case_study": cs}
	if version != nil {
		resp["version"] = version
	} else {
		resp["no_op"] = true
	}
	common.SuccessResponse(c, resp, nil)
}

// DeleteCaseStudyRequest payload for soft deletion
type DeleteCaseStudyRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// DeleteCaseStudy handles DELETE /api/v1/case-studies/:id (soft delete)
func (h *CaseStudyHandler) DeleteCaseStudy(c *gin.Context) {
	var req DeleteCaseStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	version, err := h.lifecycle.SoftDelete(c.Param("id"), req.Reason, middleware.GetUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrCaseStudyNotFound):
			common.ErrorResponse(c, http.StatusNotFound, "Case study not found", err)
		case errors.Is(err, common.ErrAlreadyDeleted):
			common.ErrorResponse(c, http.StatusConflict, "Case study is already deleted", err)
		default:
			common.ErrorResponse(c, http.StatusInternalServerError, "Failed to delete case study", err)
		}
		return
	}
	common.SuccessResponse(c, version, nil)
}

// RestoreCaseStudy handles POST /api/v1/case-studies/:id/restore
func (h *CaseStudyHandler) RestoreCaseStudy(c *gin.Context) {
	version, err := h.lifecycle.Restore(c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrCaseStudyNotFound):
			common.ErrorResponse(c, http.StatusNotFound, "Case study not found", err)
		case errors.Is(err, common.ErrNotDeleted):
			common.ErrorResponse(c, http.StatusConflict, "Case study is not deleted", err)
		default:
			common.ErrorResponse(c, http.StatusInternalServerError, "Failed to restore case study", err)
		}
		return
	}
	common.SuccessResponse(c, version, nil)
}

// GetVersionHistory handles GET /api/v1/case-studies/:id/versions
func (h *CaseStudyHandler) GetVersionHistory(c *gin.Context) {
	limit := ginutil.QueryInt(c, "limit", 0)

	versions, err := h.ledger.GetVersionHistory(c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, common.ErrCaseStudyNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "Case study not found", err)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to load version history", err)
		return
	}
	common.SuccessResponse(c, versions, nil)
}
