package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/billingportal/internal/config"
)

const DefaultCookieName = "_sid"

// Manager owns the portal session cookie. The cookie only carries the opaque
// token; everything else lives in the sessions table.
type Manager struct {
	cookieName string
	secure     bool
	sameSite   http.SameSite
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.AuthCookieSecure,
		sameSite:   http.SameSiteLaxMode,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// ReadToken returns the raw session token, or false when the cookie is absent or blank.
func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	cookie, err := c.Request.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(cookie.Value)
	return token, token != ""
}

// Set issues the cookie so it expires together with the server-side session.
func (m *Manager) Set(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		m.Clear(c)
		return
	}
	http.SetCookie(c.Writer, m.cookie(token, expiresAt, maxAge))
}

func (m *Manager) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, m.cookie("", time.Unix(0, 0), -1))
}

func (m *Manager) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: m.sameSite,
	}
}
