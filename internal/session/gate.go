package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CookieName is the single identity cookie carrying the session token.
const CookieName = "session"

// AuthEntryPath is where unauthenticated requests are sent.
const AuthEntryPath = "/auth"

// PublicPrefixes lists the path prefixes that never require a session:
// the auth entry, the auth APIs, the AI-facing content APIs, and upload.
// The content APIs authenticate inside their handlers where needed.
var PublicPrefixes = []string{
	"/auth",
	"/api/auth",
	"/api/chat",
	"/api/upload",
	"/api/risk",
	"/api/suggest",
	"/api/compare",
}

// Gate classifies each request as public or protected. Protected paths
// require a valid session cookie; otherwise the request is redirected to
// the auth entry, and a present-but-invalid cookie is deleted.
func (a *Authority) Gate(publicPrefixes []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}
		token, err := c.Cookie(CookieName)
		if err != nil || token == "" {
			c.Redirect(http.StatusFound, AuthEntryPath)
			c.Abort()
			return
		}
		if _, err := a.Verify(token); err != nil {
			ClearCookie(c)
			c.Redirect(http.StatusFound, AuthEntryPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSession authenticates a handler-level request from the session
// cookie, writing 401 on failure.
func (a *Authority) RequireSession(c *gin.Context) (*Payload, bool) {
	token, err := c.Cookie(CookieName)
	if err != nil || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return nil, false
	}
	payload, err := a.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		return nil, false
	}
	return payload, true
}

// SetCookie installs the session cookie for maxAge seconds.
func SetCookie(c *gin.Context, token string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie deletes the session cookie. Deleting twice is a no-op.
func ClearCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
