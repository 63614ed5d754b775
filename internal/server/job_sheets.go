package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jobsheetdomain "github.com/smallbiznis/garageflow/internal/jobsheet/domain"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
)

type createJobSheetRequest struct {
	BookingID    string `json:"bookingId" binding:"required"`
	TechnicianID string `json:"technicianId" binding:"required"`
}

type listJobSheetsQuery struct {
	pagination.Page
	Status       string `form:"status"`
	BookingID    string `form:"bookingId"`
	TechnicianID string `form:"technicianId"`
}

// jobSheetActionRequest is shared by the lifecycle actions; each reads the
// fields it needs.
type jobSheetActionRequest struct {
	Note     string `json:"note"`
	Reason   string `json:"reason"`
	HaltedBy string `json:"haltedBy"`
}

type checklistItemRequest struct {
	Done *bool `json:"done" binding:"required"`
}

type submitDiagnosisRequest struct {
	Services     []jobsheetdomain.DiagnosedServiceInput `json:"services"`
	Notes        string                                 `json:"notes"`
	TechnicianID string                                 `json:"technicianId"`
}

type reviewDiagnosisRequest struct {
	ReviewerID string `json:"reviewerId"`
	Reason     string `json:"reason"`
}

func (s *Server) CreateJobSheet(c *gin.Context) {
	var req createJobSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	sheet, err := s.jobSheetSvc.Create(c.Request.Context(), jobsheetdomain.CreateJobSheetRequest{
		BookingID:    strings.TrimSpace(req.BookingID),
		TechnicianID: strings.TrimSpace(req.TechnicianID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": sheet})
}

func (s *Server) ListJobSheets(c *gin.Context) {
	var query listJobSheetsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.jobSheetSvc.List(c.Request.Context(), jobsheetdomain.ListJobSheetRequest{
		Page:         query.Page,
		Status:       strings.TrimSpace(query.Status),
		BookingID:    strings.TrimSpace(query.BookingID),
		TechnicianID: strings.TrimSpace(query.TechnicianID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.JobSheets, "pageInfo": resp.PageInfo})
}

func (s *Server) GetJobSheetByID(c *gin.Context) {
	id, ok := s.jobSheetID(c)
	if !ok {
		return
	}

	sheet, err := s.jobSheetSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sheet})
}

func (s *Server) StartJobSheet(c *gin.Context) {
	id, req, ok := s.jobSheetAction(c)
	if !ok {
		return
	}

	result, err := s.jobSheetSvc.Start(c.Request.Context(), id, req.Note)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result.JobSheet, "shortages": result.Shortages})
}

func (s *Server) PauseJobSheet(c *gin.Context) {
	id, req, ok := s.jobSheetAction(c)
	if !ok {
		return
	}

	sheet, err := s.jobSheetSvc.Pause(c.Request.Context(), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sheet})
}

func (s *Server) ResumeJobSheet(c *gin.Context) {
	id, req, ok := s.jobSheetAction(c)
	if !ok {
		return
	}

	sheet, err := s.jobSheetSvc.Resume(c.Request.Context(), id, req.Note)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sheet})
}

func (s *Server) HaltJobSheet(c *gin.Context) {
	id, req, ok := s.jobSheetAction(c)
	if !ok {
		return
	}

	haltedBy := strings.TrimSpace(req.HaltedBy)
	if haltedBy == "" {
		if principal, found := principalFromGin(c); found {
			haltedBy = principal.Subject
		}
	}

	sheet, err := s.jobSheetSvc.Halt(c.Request.Context(), id, req.Reason, haltedBy)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sheet})
}

func (s *Server) CompleteJobSheet(c *gin.Context) {
	id, req, ok := s.jobSheetAction(c)
	if !ok {
		return
	}

	result, err := s.jobSheetSvc.Complete(c.Request.Context(), id, req.Note)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result.JobSheet, "invoice": result.Invoice})
}

func (s *Server) CancelJobSheet(c *gin.Context) {
	id, req, ok := s.jobSheetAction(c)
	if !ok {
		return
	}

	sheet, err := s.jobSheetSvc.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sheet})
}

func (s *Server) SetJobSheetChecklistItem(c *gin.Context) {
	id, ok := s.jobSheetID(c)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(c.Param("itemId"))
	if itemID == "" {
		AbortWithError(c, fieldError("itemId"))
		return
	}

	var req checklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	sheet, err := s.jobSheetSvc.SetChecklistItem(c.Request.Context(), id, itemID, *req.Done)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sheet})
}

func (s *Server) GetJobSheetDuration(c *gin.Context) {
	id, ok := s.jobSheetID(c)
	if !ok {
		return
	}
	live, err := queryBool(c, "live")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	duration, err := s.jobSheetSvc.WorkDuration(c.Request.Context(), id, live)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": duration})
}

func (s *Server) SubmitJobSheetDiagnosis(c *gin.Context) {
	id, ok := s.jobSheetID(c)
	if !ok {
		return
	}

	var req submitDiagnosisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	technicianID := strings.TrimSpace(req.TechnicianID)
	if technicianID == "" {
		if principal, found := principalFromGin(c); found {
			technicianID = principal.Subject
		}
	}

	result, err := s.jobSheetSvc.SubmitDiagnosis(c.Request.Context(), id, jobsheetdomain.SubmitDiagnosisRequest{
		Services:     req.Services,
		Notes:        req.Notes,
		TechnicianID: technicianID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result.JobSheet, "quote": result.Quote})
}

func (s *Server) ApproveJobSheetDiagnosis(c *gin.Context) {
	id, req, ok := s.reviewRequest(c)
	if !ok {
		return
	}

	result, err := s.jobSheetSvc.Approve(c.Request.Context(), id, req.ReviewerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result.JobSheet, "shortages": result.Shortages})
}

func (s *Server) RejectJobSheetDiagnosis(c *gin.Context) {
	id, req, ok := s.reviewRequest(c)
	if !ok {
		return
	}

	sheet, err := s.jobSheetSvc.Reject(c.Request.Context(), id, req.ReviewerID, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sheet})
}

func (s *Server) jobSheetID(c *gin.Context) (string, bool) {
	id, err := resourceID(c, "job_sheet_id")
	if err != nil {
		AbortWithError(c, err)
		return "", false
	}
	return id, true
}

// jobSheetAction reads the id and an optional JSON body.
func (s *Server) jobSheetAction(c *gin.Context) (string, jobSheetActionRequest, bool) {
	var req jobSheetActionRequest
	id, ok := s.jobSheetID(c)
	if !ok {
		return "", req, false
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return "", req, false
	}
	return id, req, true
}

func (s *Server) reviewRequest(c *gin.Context) (string, reviewDiagnosisRequest, bool) {
	var req reviewDiagnosisRequest
	id, ok := s.jobSheetID(c)
	if !ok {
		return "", req, false
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return "", req, false
	}
	if strings.TrimSpace(req.ReviewerID) == "" {
		if principal, found := principalFromGin(c); found {
			req.ReviewerID = principal.Subject
		}
	}
	return id, req, true
}

func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return bindError(err)
	}
	return nil
}
