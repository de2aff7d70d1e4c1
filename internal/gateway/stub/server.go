package stub

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/billingportal/internal/gateway/domain"
	"github.com/smallbiznis/billingportal/internal/observability/logger"
	"go.uber.org/zap"
)

type Server struct {
	store *Store
	token string
	log   *zap.Logger
}

func NewServer(store *Store, token string, log *zap.Logger) *Server {
	return &Server{
		store: store,
		token: strings.TrimSpace(token),
		log:   log.Named("gateway.stub"),
	}
}

// Handler builds the gin engine serving the gateway routes.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{}))
	r.Use(s.requireToken)

	r.GET("/documents", s.listDocuments)
	r.GET("/documents/:id/:format", s.fetchArtifact)
	return r
}

func (s *Server) requireToken(c *gin.Context) {
	if s.token == "" {
		c.Next()
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) listDocuments(c *gin.Context) {
	customerID := strings.TrimSpace(c.Query("customer_id"))
	if customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_id is required"})
		return
	}

	documents := s.store.ForCustomer(customerID)
	total := len(documents)
	resp := gin.H{"total": total}

	page, perPage := positiveQuery(c, "page"), positiveQuery(c, "per_page")
	if page > 0 && perPage > 0 {
		start := (page - 1) * perPage
		if start > total {
			start = total
		}
		end := start + perPage
		if end > total {
			end = total
		}
		documents = documents[start:end]
		resp["page"] = page
		resp["per_page"] = perPage
	}
	resp["documents"] = documents

	c.JSON(http.StatusOK, resp)
}

func (s *Server) fetchArtifact(c *gin.Context) {
	format, err := domain.ParseFormat(c.Param("format"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown format"})
		return
	}

	doc, ok := s.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	// Documents of another customer are indistinguishable from missing ones.
	if customerID := strings.TrimSpace(c.Query("customer_id")); customerID != "" && customerID != doc.CustomerID {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	var body []byte
	switch format {
	case domain.FormatPDF:
		body, err = RenderPDF(doc)
	default:
		body, err = RenderXML(doc)
	}
	if err != nil {
		s.log.Error("render artifact failed",
			zap.String("document_id", doc.ID),
			zap.String("format", string(format)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}

	c.Data(http.StatusOK, format.ContentType(), body)
}

func positiveQuery(c *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
