package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
)

type createBookingRequest struct {
	ServiceID         string                       `json:"serviceId" binding:"required"`
	ServiceName       string                       `json:"serviceName" binding:"required"`
	ServicePrice      decimal.Decimal              `json:"servicePrice"`
	ServiceDuration   int                          `json:"serviceDuration" binding:"gte=0"`
	ExtraServices     []bookingdomain.ServiceInput `json:"extraServices"`
	Customer          *bookingdomain.Customer      `json:"customer" binding:"required"`
	Car               *bookingdomain.Vehicle       `json:"car" binding:"required"`
	Date              string                       `json:"date" binding:"required"`
	StartTime         string                       `json:"startTime" binding:"required"`
	EndTime           string                       `json:"endTime" binding:"required"`
	Bay               string                       `json:"bay" binding:"required"`
	RequiresDiagnosis bool                         `json:"requiresDiagnosis"`
	DiagnosisNotes    string                       `json:"diagnosisNotes"`
}

type updateBookingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type listBookingsQuery struct {
	PageToken string `form:"pageToken"`
	PageSize  int    `form:"pageSize"`
	Status    string `form:"status"`
	Date      string `form:"date"`
}

func (s *Server) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	booking, err := s.bookingSvc.Create(c.Request.Context(), bookingdomain.CreateBookingRequest{
		ServiceID:         req.ServiceID,
		ServiceName:       req.ServiceName,
		ServicePrice:      req.ServicePrice,
		ServiceDuration:   req.ServiceDuration,
		ExtraServices:     req.ExtraServices,
		Customer:          *req.Customer,
		Car:               *req.Car,
		Date:              req.Date,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Bay:               req.Bay,
		RequiresDiagnosis: req.RequiresDiagnosis,
		DiagnosisNotes:    req.DiagnosisNotes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": booking})
}

func (s *Server) ListBookings(c *gin.Context) {
	var query listBookingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bookingSvc.List(c.Request.Context(), bookingdomain.ListBookingRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
		Status:    strings.TrimSpace(query.Status),
		Date:      strings.TrimSpace(query.Date),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":          resp.Bookings,
		"nextPageToken": resp.NextPageToken,
		"hasMore":       resp.HasMore,
	})
}

func (s *Server) GetBookingByID(c *gin.Context) {
	id, err := resourceID(c, "booking_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	booking, err := s.bookingSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": booking})
}

func (s *Server) UpdateBookingStatus(c *gin.Context) {
	id, err := resourceID(c, "booking_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	status := bookingdomain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		AbortWithError(c, bookingdomain.ErrInvalidStatus)
		return
	}

	booking, err := s.bookingSvc.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": booking})
}
