package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	inventorydomain "github.com/smallbiznis/garageflow/internal/inventory/domain"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
)

type createItemRequest struct {
	Name         string          `json:"name" binding:"required"`
	SKU          string          `json:"sku" binding:"required"`
	Category     string          `json:"category"`
	Quantity     int64           `json:"quantity" binding:"gte=0"`
	ReorderLevel *int64          `json:"reorderLevel" binding:"omitempty,gte=0"`
	Unit         string          `json:"unit"`
	Cost         decimal.Decimal `json:"cost"`
	Price        decimal.Decimal `json:"price"`
	Supplier     string          `json:"supplier"`
	Location     string          `json:"location"`
}

type listItemsQuery struct {
	pagination.Page
	Search    string `form:"search"`
	Category  string `form:"category"`
	Status    string `form:"status"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
}

type listItemMovementsQuery struct {
	pagination.Page
	Type          string `form:"type"`
	ReferenceType string `form:"referenceType"`
}

type availabilityRequest struct {
	ServiceIDs []string `json:"serviceIds" binding:"required,min=1"`
}

func (s *Server) ListInventoryItems(c *gin.Context) {
	var query listItemsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	includeInactive, err := queryBool(c, "includeInactive")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inventorySvc.ListItems(c.Request.Context(), inventorydomain.ListItemRequest{
		Page:            query.Page,
		Search:          strings.TrimSpace(query.Search),
		Category:        strings.TrimSpace(query.Category),
		Status:          strings.TrimSpace(query.Status),
		SortBy:          strings.TrimSpace(query.SortBy),
		SortOrder:       strings.TrimSpace(query.SortOrder),
		IncludeInactive: includeInactive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Items, "pageInfo": resp.PageInfo})
}

func (s *Server) CreateInventoryItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.inventorySvc.CreateItem(c.Request.Context(), inventorydomain.CreateItemRequest{
		Name:            req.Name,
		SKU:             req.SKU,
		Category:        req.Category,
		InitialQuantity: req.Quantity,
		ReorderLevel:    req.ReorderLevel,
		Unit:            req.Unit,
		Cost:            req.Cost,
		Price:           req.Price,
		Supplier:        req.Supplier,
		Location:        req.Location,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetInventoryItem(c *gin.Context) {
	id, err := resourceID(c, "item_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.inventorySvc.GetItem(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) DeactivateInventoryItem(c *gin.Context) {
	id, err := resourceID(c, "item_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.inventorySvc.DeactivateItem(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListInventoryItemMovements(c *gin.Context) {
	id, err := resourceID(c, "item_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query listItemMovementsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inventorySvc.ListMovements(c.Request.Context(), inventorydomain.ListMovementRequest{
		Page:          query.Page,
		ItemID:        id,
		ReferenceType: strings.TrimSpace(query.ReferenceType),
		Type:          strings.TrimSpace(query.Type),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Movements, "pageInfo": resp.PageInfo})
}

func (s *Server) VerifyInventoryItemLedger(c *gin.Context) {
	id, err := resourceID(c, "item_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.inventorySvc.VerifyLedger(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// CheckInventoryAvailability reports shortages for the given services. A
// shortage is a warning and never blocks work.
func (s *Server) CheckInventoryAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	requirements, err := s.inventorySvc.RequirementsForServices(ctx, req.ServiceIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	shortages, err := s.inventorySvc.CheckAvailability(ctx, req.ServiceIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"available":    len(shortages) == 0,
			"requirements": requirements,
			"shortages":    shortages,
		},
	})
}
