package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/viagem-certa/service-trip/internal/application"
	"github.com/viagem-certa/service-trip/internal/response"
)

// EstimateHandler serves one-shot price estimates.
type EstimateHandler struct {
	service *application.TripService
}

// NewEstimateHandler creates a new EstimateHandler.
func NewEstimateHandler(service *application.TripService) *EstimateHandler {
	return &EstimateHandler{service: service}
}

// RegisterRoutes registers the estimate route.
func (h *EstimateHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/api/v1/estimates", h.Estimate)
}

// Estimate handles POST /api/v1/estimates. Every outcome, including
// unavailable, is a 200; the kind field tells them apart.
func (h *EstimateHandler) Estimate(c *gin.Context) {
	var req application.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	out, err := h.service.EstimateTrip(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, out)
}
