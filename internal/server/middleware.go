package server

import (
	_ "embed"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	obscontext "github.com/smallbiznis/billingportal/internal/observability/context"
)

const contextIdentityKey = "identity"

// placeholderIndex is served when no frontend bundle is installed in the
// public directory.
//
//go:embed web/index.html
var placeholderIndex []byte

func (s *Server) serveIndex(c *gin.Context) {
	if fileExists(s.publicDir(), "/index.html") {
		c.File(filepath.Join(s.publicDir(), "index.html"))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", placeholderIndex)
}

func (s *Server) publicDir() string {
	if dir := strings.TrimSpace(s.cfg.PublicDir); dir != "" {
		return dir
	}
	return "public"
}

// AuthRequired answers 401 without detail when no identity can be resolved.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := s.resolver.Resolve(c)
		if err != nil || identity == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// PageAuthRequired sends anonymous browsers to the sign-in page.
func (s *Server) PageAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := s.resolver.Resolve(c)
		if err != nil || identity == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

func (s *Server) redirectIfLoggedIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity, err := s.resolver.Resolve(c); err == nil && identity != nil {
			c.Redirect(http.StatusFound, "/dashboard")
			c.Abort()
			return
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, identity *authdomain.Identity) {
	c.Set(contextIdentityKey, *identity)
	ctx := obscontext.WithActor(c.Request.Context(), identity.ID.String())
	c.Request = c.Request.WithContext(ctx)
}

func identityFromContext(c *gin.Context) (authdomain.Identity, bool) {
	value, ok := c.Get(contextIdentityKey)
	if !ok {
		return authdomain.Identity{}, false
	}
	identity, ok := value.(authdomain.Identity)
	return identity, ok
}
