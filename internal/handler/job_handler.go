package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/middleware"
	"github.com/casedeck/casedeck-backend/internal/service"
	"github.com/casedeck/casedeck-backend/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// JobHandler handles propagation job API endpoints
type JobHandler struct {
	propagation *service.PropagationService
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(propagationSvc *service.PropagationService) *JobHandler {
	return &JobHandler{propagation: propagationSvc}
}

// PropagateRequest payload for starting a bulk propagation
type PropagateRequest struct {
	Selector struct {
		IDs           []string   `json:"ids"`
		AllActive     bool       `json:"all_active"`
		CreatedBefore *time.Time `json:"created_before"`
	} `json:"selector" binding:"required"`
	Mutation struct {
		Fields     map[string]interface{} `json:"fields" binding:"required"`
		ChangeType string                 `json:"change_type" binding:"required,oneof=content metadata visuals full_regenerate"`
		Reason     string                 `json:"reason" binding:"max=255"`
	} `json:"mutation" binding:"required"`
}

// Propagate handles POST /api/v1/propagations
func (h *JobHandler) Propagate(c *gin.Context) {
	var req PropagateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	selector := domain.Selector{
		IDs:           req.Selector.IDs,
		AllActive:     req.Selector.AllActive,
		CreatedBefore: req.Selector.CreatedBefore,
	}
	mutation := service.Mutation{
		Fields:     req.Mutation.Fields,
		ChangeType: req.Mutation.ChangeType,
		Reason:     req.Mutation.Reason,
	}

	jobID, err := h.propagation.Propagate(selector, mutation, middleware.GetUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidSelector),
			errors.Is(err, common.ErrInvalidInput),
			errors.Is(err, common.ErrProtectedField):
			common.ErrorResponse(c, http.StatusBadRequest, "Invalid propagation request", err)
		default:
			common.ErrorResponse(c, http.StatusInternalServerError, "Failed to start propagation", err)
		}
		return
	}
	common.AcceptedResponse(c, gin.H{"job_id": jobID})
}

// GetJob handles GET /api/v1/propagations/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.propagation.GetJob(c.Param("id"))
	if err != nil {
		if errors.Is(err, common.ErrJobNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "Propagation job not found", err)
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to load propagation job", err)
		return
	}
	common.SuccessResponse(c, job, nil)
}

// ListJobs handles GET /api/v1/propagations
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit := ginutil.QueryInt(c, "limit", 20)

	jobs, err := h.propagation.ListJobs(limit)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to list propagation jobs", err)
		return
	}
	common.SuccessResponse(c, jobs, nil)
}

// CancelJob handles POST /api/v1/propagations/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.propagation.Cancel(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrJobNotFound):
			common.ErrorResponse(c, http.StatusNotFound, "Propagation job not found", err)
		case errors.Is(err, common.ErrJobAlreadyDone):
			common.ErrorResponse(c, http.StatusConflict, "Propagation job already finished", err)
		default:
			common.ErrorResponse(c, http.StatusInternalServerError, "Failed to cancel propagation job", err)
		}
		return
	}
	common.SuccessResponse(c, job, nil)
}
