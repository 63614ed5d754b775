package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	bookingdomain "github.com/smallbiznis/garageflow/internal/booking/domain"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	jobsheetdomain "github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
)

type createStockMovementRequest struct {
	ItemID     string `json:"itemId" binding:"required"`
	Type       string `json:"type" binding:"required"`
	Quantity   int64  `json:"quantity" binding:"gte=0"`
	Reason     string `json:"reason" binding:"required"`
	Notes      string `json:"notes"`
	JobSheetID string `json:"jobSheetId"`
	BookingID  string `json:"bookingId"`
	ServiceID  string `json:"serviceId"`
}

type listStockMovementsQuery struct {
	pagination.Page
	ItemID        string `form:"itemId"`
	JobSheetID    string `form:"jobSheetId"`
	BookingID     string `form:"bookingId"`
	ReferenceType string `form:"referenceType"`
	Type          string `form:"type"`
}

func (s *Server) ListStockMovements(c *gin.Context) {
	var query listStockMovementsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inventorySvc.ListMovements(c.Request.Context(), inventorydomain.ListMovementRequest{
		Page:          query.Page,
		ItemID:        strings.TrimSpace(query.ItemID),
		JobSheetID:    strings.TrimSpace(query.JobSheetID),
		BookingID:     strings.TrimSpace(query.BookingID),
		ReferenceType: strings.TrimSpace(query.ReferenceType),
		Type:          strings.TrimSpace(query.Type),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Movements, "pageInfo": resp.PageInfo})
}

// CreateStockMovement records a movement and applies it to the item in one
// transaction.
func (s *Server) CreateStockMovement(c *gin.Context) {
	var req createStockMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	jobSheetID, err := optionalID("jobSheetId", req.JobSheetID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	bookingID, err := optionalID("bookingId", req.BookingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.checkMovementReferences(c.Request.Context(), jobSheetID, bookingID); err != nil {
		AbortWithError(c, err)
		return
	}

	var performedBy string
	if principal, ok := principalFromGin(c); ok {
		performedBy = principal.Subject
	}

	result, err := s.inventorySvc.AdjustStock(c.Request.Context(), inventorydomain.AdjustStockRequest{
		ItemID:      strings.TrimSpace(req.ItemID),
		Mode:        inventorydomain.MovementType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		Notes:       req.Notes,
		PerformedBy: performedBy,
		JobSheetID:  jobSheetID,
		BookingID:   bookingID,
		ServiceID:   strings.TrimSpace(req.ServiceID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data":      result.Movement,
		"item":      result.Item,
		"shortfall": result.Shortfall,
	})
}

// checkMovementReferences resolves the job sheet and booking in the caller's
// garage. A job sheet given together with a booking must belong to it.
func (s *Server) checkMovementReferences(ctx context.Context, jobSheetID, bookingID *snowflake.ID) error {
	if jobSheetID != nil {
		sheet, err := s.jobSheetSvc.GetByID(ctx, jobSheetID.String())
		if errors.Is(err, jobsheetdomain.ErrNotFound) {
			return fieldError("jobSheetId")
		}
		if err != nil {
			return err
		}
		if bookingID != nil && sheet.BookingID != *bookingID {
			return fieldError("bookingId")
		}
	}
	if bookingID != nil {
		_, err := s.bookingSvc.GetByID(ctx, bookingID.String())
		if errors.Is(err, bookingdomain.ErrNotFound) {
			return fieldError("bookingId")
		}
		if err != nil {
			return err
		}
	}
	return nil
}
