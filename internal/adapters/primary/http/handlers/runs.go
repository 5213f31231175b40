package handlers

import (
	"net/http"
	"strconv"

	"xray-pipeline/internal/adapters/primary/http/dto"
	"xray-pipeline/internal/adapters/primary/http/middleware"
	"xray-pipeline/internal/core/domain"
	"xray-pipeline/internal/core/ports/output"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TriggerRun runs the training pipeline inside the request and answers with
// the final run record.
func (h *Handler) TriggerRun(c *gin.Context) {
	run, err := h.runSvc.Trigger(c.Request.Context())
	if err != nil {
		log.WithError(err).WithField("request_id", c.GetString(middleware.ContextRequestID)).Warn("pipeline run failed")
		if run == nil {
			mapDomainError(c, err)
			return
		}
		resp := dto.ToRunResponse(run)
		c.JSON(statusFor(err), dto.TriggerRunResponse{Run: &resp, Error: err.Error()})
		return
	}

	resp := dto.ToRunResponse(run)
	c.JSON(http.StatusCreated, dto.TriggerRunResponse{Run: &resp})
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := ports.RunListFilter{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	}.Normalized()
	switch domain.RunStatus(filter.Status) {
	case "", domain.RunStatusRunning, domain.RunStatusSucceeded, domain.RunStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	runs, total, err := h.runSvc.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("list runs failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.RunResponse, 0, len(runs))
	for _, r := range runs {
		items = append(items, dto.ToRunResponse(r))
	}

	c.JSON(http.StatusOK, dto.ListRunsResponse{
		Items:      items,
		Total:      total,
		PageSize:   filter.Limit,
		NextOffset: filter.Offset + len(items),
	})
}

func (h *Handler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.runSvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRunResponse(run))
}
