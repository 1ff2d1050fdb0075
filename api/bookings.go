package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/avelin/airseat/internal/domain"
	"github.com/avelin/airseat/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type LedgerReader interface {
	List() []domain.Booking
}

// ArchiveReader exposes the off-process booking copy for export reads. Nil
// when no archive database is configured.
type ArchiveReader interface {
	ListBookings(ctx context.Context) ([]domain.Booking, error)
}

type BookingHandler struct {
	service booking.BookingUseCase
	ledger  LedgerReader
	archive ArchiveReader
}

type supplyCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type choosePaymentRequest struct {
	Method string `json:"method"`
}

func NewBookingHandler(service booking.BookingUseCase, ledger LedgerReader, archive ArchiveReader) *BookingHandler {
	return &BookingHandler{service: service, ledger: ledger, archive: archive}
}

func (h *BookingHandler) RegisterAttempts(router *gin.RouterGroup) {
	router.POST("/", h.start)
	router.GET("/:id", h.get)
	router.POST("/:id/code", h.supplyCode)
	router.POST("/:id/payment", h.choosePayment)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) RegisterBookings(router *gin.RouterGroup) {
	router.GET("/", h.listBookings)
	router.GET("/archive", h.listArchive)
}

func (h *BookingHandler) start(c *gin.Context) {
	var input booking.StartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attempt, err := h.service.Start(c.Request.Context(), input)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "attempt": attempt})
		return
	}
	c.JSON(http.StatusCreated, attempt)
}

func (h *BookingHandler) get(c *gin.Context) {
	attempt, err := h.service.Get(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

func (h *BookingHandler) supplyCode(c *gin.Context) {
	var req supplyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attempt, err := h.service.SupplyCode(c.Request.Context(), c.Param("id"), req.Code)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "attempt": attempt})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

func (h *BookingHandler) choosePayment(c *gin.Context) {
	var req choosePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.ChoosePayment(c.Request.Context(), c.Param("id"), req.Method)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "attempt": result.Attempt})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	attempt, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

func (h *BookingHandler) listBookings(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.List())
}

func (h *BookingHandler) listArchive(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking archive not configured"})
		return
	}

	bookings, err := h.archive.ListBookings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrFlightNotFound),
		errors.Is(err, domain.ErrSeatNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSeatUnavailable),
		errors.Is(err, domain.ErrHoldExpired),
		errors.Is(err, domain.ErrHoldMismatch),
		errors.Is(err, domain.ErrAttemptTerminal),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrDuplicateBooking):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCodeMismatch),
		errors.Is(err, domain.ErrCodeExpired):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
