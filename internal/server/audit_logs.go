package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/garageflow/internal/audit/domain"
)

type listAuditLogsQuery struct {
	PageToken  string `form:"pageToken"`
	PageSize   int    `form:"pageSize"`
	Action     string `form:"action"`
	TargetType string `form:"targetType"`
	TargetID   string `form:"targetId"`
	ActorType  string `form:"actorType"`
	StartAt    string `form:"startAt"`
	EndAt      string `form:"endAt"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startAt, err := queryTime("startAt", query.StartAt, false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	endAt, err := queryTime("endAt", query.EndAt, true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		PageToken:  strings.TrimSpace(query.PageToken),
		PageSize:   query.PageSize,
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
		ActorType:  strings.TrimSpace(query.ActorType),
		StartAt:    startAt,
		EndAt:      endAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":          resp.AuditLogs,
		"nextPageToken": resp.NextPageToken,
		"hasMore":       resp.HasMore,
	})
}
