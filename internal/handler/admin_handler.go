package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/viagem-certa/service-trip/internal/application"
	"github.com/viagem-certa/service-trip/internal/response"
)

// AdminTripHandler handles admin HTTP requests for trip management.
type AdminTripHandler struct {
	service *application.TripService
}

// NewAdminTripHandler creates a new AdminTripHandler.
func NewAdminTripHandler(service *application.TripService) *AdminTripHandler {
	return &AdminTripHandler{service: service}
}

// RegisterRoutes registers admin trip routes.
func (h *AdminTripHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/api/v1/admin")
	{
		admin.GET("/trips", h.ListTrips)
		admin.GET("/stats/trips", h.TripStats)
		admin.POST("/trips/:id/accept", h.AcceptTrip)
		admin.POST("/trips/:id/reject", h.RejectTrip)
		admin.POST("/trips/:id/start", h.StartTrip)
		admin.POST("/trips/:id/complete", h.CompleteTrip)
		admin.POST("/trips/:id/reschedule", h.RescheduleTrip)
		admin.POST("/trips/:id/price", h.SetPrice)
	}
}

// ListTrips handles GET /api/v1/admin/trips?status=.
func (h *AdminTripHandler) ListTrips(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.service.ListAllTrips(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// TripStats handles GET /api/v1/admin/stats/trips.
func (h *AdminTripHandler) TripStats(c *gin.Context) {
	stats, err := h.service.GetTripStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// AcceptTrip handles POST /api/v1/admin/trips/:id/accept.
func (h *AdminTripHandler) AcceptTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}
	result, err := h.service.AcceptTrip(c.Request.Context(), tripID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

type rejectRequest struct {
	Reason string `json:"motivo"`
}

// RejectTrip handles POST /api/v1/admin/trips/:id/reject.
func (h *AdminTripHandler) RejectTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var req rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	result, err := h.service.RejectTrip(c.Request.Context(), tripID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// StartTrip handles POST /api/v1/admin/trips/:id/start.
func (h *AdminTripHandler) StartTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}
	result, err := h.service.StartTrip(c.Request.Context(), tripID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// CompleteTrip handles POST /api/v1/admin/trips/:id/complete.
func (h *AdminTripHandler) CompleteTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}
	result, err := h.service.CompleteTrip(c.Request.Context(), tripID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// RescheduleTrip handles POST /api/v1/admin/trips/:id/reschedule.
func (h *AdminTripHandler) RescheduleTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var req application.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RescheduleTrip(c.Request.Context(), tripID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SetPrice handles POST /api/v1/admin/trips/:id/price.
func (h *AdminTripHandler) SetPrice(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var req application.ManualPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetManualPrice(c.Request.Context(), tripID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
