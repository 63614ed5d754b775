package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/garageflow/internal/invoice/domain"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
)

type listInvoicesQuery struct {
	pagination.Page
	Status    string `form:"status"`
	BookingID string `form:"bookingId"`
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	overdue, err := queryBool(c, "overdue")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Page:      query.Page,
		Status:    strings.TrimSpace(query.Status),
		BookingID: strings.TrimSpace(query.BookingID),
		Overdue:   overdue,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "pageInfo": resp.PageInfo})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, err := resourceID(c, "invoice_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) SendInvoice(c *gin.Context) {
	s.invoiceTransition(c, s.invoiceSvc.Send)
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	s.invoiceTransition(c, s.invoiceSvc.MarkPaid)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	s.invoiceTransition(c, s.invoiceSvc.Cancel)
}

func (s *Server) invoiceTransition(c *gin.Context, apply func(ctx context.Context, id string) (invoicedomain.Invoice, error)) {
	id, err := resourceID(c, "invoice_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := apply(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
