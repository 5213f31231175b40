package handlers

import (
	"xray-pipeline/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	runSvc *services.RunService
}

func New(runSvc *services.RunService) *Handler {
	return &Handler{runSvc: runSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Pipeline runs
	r.POST("/runs", h.TriggerRun)
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)
}
