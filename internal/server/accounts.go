package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type setAccountOwnerRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) SetAccountOwner(c *gin.Context) {
	var req setAccountOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.directorySvc.SetOwner(c.Request.Context(), c.Param("accountId"), req.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
