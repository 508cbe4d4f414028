package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reportdomain "github.com/smallbiznis/royalti/internal/report/domain"
)

// UploadReport accepts a multipart form with file, periodId and type.
func (s *Server) UploadReport(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, reportdomain.ErrMissingFile)
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	resp, err := s.reportSvc.Upload(c.Request.Context(), reportdomain.UploadRequest{
		PeriodID: strings.TrimSpace(c.PostForm("periodId")),
		Type:     strings.TrimSpace(c.PostForm("type")),
		FileName: header.Filename,
		File:     file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListReports(c *gin.Context) {
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.reportSvc.List(c.Request.Context(), reportdomain.ListRequest{
		Type:       strings.TrimSpace(c.Query("type")),
		PeriodID:   strings.TrimSpace(c.Query("periodId")),
		Status:     strings.TrimSpace(c.Query("status")),
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetReportByID(c *gin.Context) {
	resp, err := s.reportSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReportRowErrors(c *gin.Context) {
	resp, err := s.reportSvc.ListRowErrors(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RetryReport(c *gin.Context) {
	resp, err := s.reportSvc.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": resp})
}

func (s *Server) DeleteReport(c *gin.Context) {
	if err := s.reportSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
