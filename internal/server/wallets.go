package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	walletdomain "github.com/smallbiznis/royalti/internal/wallet/domain"
)

func (s *Server) GetWallet(c *gin.Context) {
	resp, err := s.walletSvc.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWalletAdjustments(c *gin.Context) {
	resp, err := s.walletSvc.ListAdjustments(c.Request.Context(), c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// CreateWalletAdjustment applies a manual credit or debit. The actor comes
// from the X-Actor-ID header.
func (s *Server) CreateWalletAdjustment(c *gin.Context) {
	var req walletdomain.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = c.Param("userId")

	resp, err := s.walletSvc.ApplyManualAdjustment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListWalletEntries(c *gin.Context) {
	resp, err := s.ledgerSvc.ListEntries(c.Request.Context(), c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
