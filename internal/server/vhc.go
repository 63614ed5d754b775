package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	vhcdomain "github.com/smallbiznis/garageflow/internal/vhc/domain"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
)

type createVHCResponseRequest struct {
	VehicleID  string            `json:"vehicleId" binding:"required"`
	BookingID  string            `json:"bookingId"`
	Powertrain string            `json:"powertrain" binding:"required"`
	Status     string            `json:"status"`
	AssignedTo string            `json:"assignedTo"`
	Notes      string            `json:"notes"`
	Answers    vhcdomain.Answers `json:"answers"`
}

type listVHCResponsesQuery struct {
	pagination.Page
	Status     string `form:"status"`
	AssignedTo string `form:"assignedTo"`
	VehicleID  string `form:"vehicleId"`
	Powertrain string `form:"powertrain"`
	CreatedBy  string `form:"createdBy"`
	StartDate  string `form:"startDate"`
	EndDate    string `form:"endDate"`
	SortBy     string `form:"sortBy"`
	SortOrder  string `form:"sortOrder"`
}

func (s *Server) ListVHCResponses(c *gin.Context) {
	var query listVHCResponsesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.vhcSvc.List(c.Request.Context(), vhcdomain.ListResponseRequest{
		Page:       query.Page,
		Status:     strings.TrimSpace(query.Status),
		AssignedTo: strings.TrimSpace(query.AssignedTo),
		VehicleID:  strings.TrimSpace(query.VehicleID),
		Powertrain: strings.TrimSpace(query.Powertrain),
		CreatedBy:  strings.TrimSpace(query.CreatedBy),
		StartDate:  strings.TrimSpace(query.StartDate),
		EndDate:    strings.TrimSpace(query.EndDate),
		SortBy:     strings.TrimSpace(query.SortBy),
		SortOrder:  strings.TrimSpace(query.SortOrder),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Responses, "pageInfo": resp.PageInfo})
}

func (s *Server) CreateVHCResponse(c *gin.Context) {
	var req createVHCResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.vhcSvc.Create(c.Request.Context(), vhcdomain.CreateResponseRequest{
		VehicleID:  req.VehicleID,
		BookingID:  req.BookingID,
		Powertrain: req.Powertrain,
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
		Notes:      req.Notes,
		Answers:    req.Answers,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetVHCResponse(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.vhcSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
