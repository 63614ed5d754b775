package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetGarage returns the caller's own garage; the path guard has already
// matched it against the token.
func (s *Server) GetGarage(c *gin.Context) {
	id, err := pathID(c, paramGarageID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	garage, err := s.garageSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": garage})
}
