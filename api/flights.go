package api

import (
	"errors"
	"net/http"

	"github.com/avelin/airseat/internal/domain"
	"github.com/avelin/airseat/internal/service/flights"
	"github.com/gin-gonic/gin"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type createFlightRequest struct {
	ID          string `json:"id" binding:"required"`
	FromAirport string `json:"from_airport"`
	ToAirport   string `json:"to_airport"`
	Rows        int    `json:"rows"`
	SeatsPerRow int    `json:"seats_per_row"`
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.POST("/", h.create)
	router.GET("/:id/seats", h.seatMap)
}

func (h *FlightHandler) list(c *gin.Context) {
	flights, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, flights)
}

func (h *FlightHandler) create(c *gin.Context) {
	var req createFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flight := domain.Flight{
		ID:          req.ID,
		FromAirport: req.FromAirport,
		ToAirport:   req.ToAirport,
		Rows:        req.Rows,
		SeatsPerRow: req.SeatsPerRow,
	}
	if err := h.service.Create(c.Request.Context(), flight); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrFlightExists) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, flight)
}

func (h *FlightHandler) seatMap(c *gin.Context) {
	seats, err := h.service.SeatMap(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrFlightNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flight_id": c.Param("id"), "seats": seats})
}
