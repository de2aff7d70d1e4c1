package server

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	documentsdomain "github.com/smallbiznis/billingportal/internal/documents/domain"
	"github.com/smallbiznis/billingportal/internal/documents/format"
	gatewaydomain "github.com/smallbiznis/billingportal/internal/gateway/domain"
)

func (s *Server) GetDashboard(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	summary, err := s.documentsvc.Dashboard(c.Request.Context(), identity)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) ListDocuments(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.documentsvc.List(c.Request.Context(), identity, documentsdomain.ListRequest{
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		AbortWithError(c, retryable(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) DownloadPDF(c *gin.Context) {
	s.download(c, gatewaydomain.FormatPDF)
}

func (s *Server) DownloadXML(c *gin.Context) {
	s.download(c, gatewaydomain.FormatXML)
}

func (s *Server) download(c *gin.Context, f gatewaydomain.Format) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	documentID := strings.TrimSpace(c.Param("id"))
	if documentID == "" {
		AbortWithError(c, gatewaydomain.ErrInvalidDocumentID)
		return
	}

	dl, err := s.documentsvc.Download(c.Request.Context(), identity, documentID, f)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", contentDisposition(dl.Filename))
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, dl.ContentType, dl.Body)
}

// contentDisposition keeps the document number as sent. Non-ASCII names go
// out as filename* with a transliterated filename for older clients.
func contentDisposition(filename string) string {
	header := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if fallback := format.ASCIIFilename(filename); fallback != "" {
		header += fmt.Sprintf("; filename=%q", fallback)
	}
	return header
}
