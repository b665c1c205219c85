package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxi/internal/middleware"
	"taxi/internal/service"
	"taxi/internal/session"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	identity := middleware.IdentityFrom(c)

	trip, err := h.tripService.GetTrip(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, session.NewTripPayload(trip))
}

// GetAll handles GET /v1/trips
func (h *TripHandler) GetAll(c *gin.Context) {
	identity := middleware.IdentityFrom(c)

	trips, err := h.tripService.ListTrips(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]session.TripPayload, 0, len(trips))
	for _, trip := range trips {
		response = append(response, session.NewTripPayload(trip))
	}

	c.JSON(http.StatusOK, response)
}
