package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/smallbiznis/royalti/internal/payout/domain"
)

func (s *Server) CreatePayout(c *gin.Context) {
	var req payoutdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListPayouts(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payoutSvc.List(c.Request.Context(), payoutdomain.ListRequest{
		UserID:     strings.TrimSpace(c.Query("userId")),
		Status:     strings.TrimSpace(c.Query("status")),
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetPayoutByID(c *gin.Context) {
	resp, err := s.payoutSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type payoutTransitionFunc func(ctx context.Context, id string, req payoutdomain.TransitionRequest) (payoutdomain.Payout, error)

func (s *Server) transitionPayout(c *gin.Context, fn payoutTransitionFunc) {
	var req payoutdomain.TransitionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := fn(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApprovePayout(c *gin.Context) {
	s.transitionPayout(c, s.payoutSvc.Approve)
}

func (s *Server) RejectPayout(c *gin.Context) {
	s.transitionPayout(c, s.payoutSvc.Reject)
}

func (s *Server) MarkPayoutPaid(c *gin.Context) {
	s.transitionPayout(c, s.payoutSvc.MarkPaid)
}

func (s *Server) CancelPayout(c *gin.Context) {
	s.transitionPayout(c, s.payoutSvc.Cancel)
}

func (s *Server) GetPayoutRemittance(c *gin.Context) {
	id := c.Param("id")
	doc, err := s.payoutSvc.Remittance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="remittance-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", doc)
}
