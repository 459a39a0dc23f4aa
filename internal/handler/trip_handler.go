package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/viagem-certa/service-trip/internal/application"
	"github.com/viagem-certa/service-trip/internal/response"
)

// TripHandler handles HTTP requests for customer trip operations.
type TripHandler struct {
	service *application.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(service *application.TripService) *TripHandler {
	return &TripHandler{service: service}
}

// RegisterRoutes registers all trip routes on the given router group.
func (h *TripHandler) RegisterRoutes(r *gin.RouterGroup) {
	trips := r.Group("/api/v1/trips")
	{
		trips.POST("", h.RequestTrip)
		trips.GET("", h.ListTrips)
		trips.GET("/:id", h.GetTrip)
		trips.POST("/:id/cancel", h.CancelTrip)
	}
}

// RequestTrip handles POST /api/v1/trips.
func (h *TripHandler) RequestTrip(c *gin.Context) {
	var req application.RequestTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RequestTrip(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListTrips handles GET /api/v1/trips?email=&status=.
func (h *TripHandler) ListTrips(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.service.ListCustomerTrips(c.Request.Context(), c.Query("email"), c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetTrip handles GET /api/v1/trips/:id.
func (h *TripHandler) GetTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	result, err := h.service.GetTrip(c.Request.Context(), tripID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

type cancelRequest struct {
	Email  string `json:"email_cliente"`
	Reason string `json:"motivo"`
}

// CancelTrip handles POST /api/v1/trips/:id/cancel.
func (h *TripHandler) CancelTrip(c *gin.Context) {
	tripID, ok := parseTripID(c)
	if !ok {
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CancelTrip(c.Request.Context(), tripID, req.Email, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func parseTripID(c *gin.Context) (uuid.UUID, bool) {
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID")
		return uuid.Nil, false
	}
	return tripID, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
