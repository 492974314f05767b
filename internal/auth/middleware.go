package auth

import (
	"net/http"
	"strings"

	"github.com/Raleighawesome/family-movies/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const identityKey = "identity"

var publicPaths = map[string]bool{
	"/health":               true,
	"/favicon.ico":          true,
	"/robots.txt":           true,
	"/manifest.webmanifest": true,
	"/sitemap.xml":          true,
}

func isPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/static/")
}

// Middleware authenticates every non-public request independently.
func Middleware(gate *Gate, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		identity, ok := gate.Authenticate(c.GetHeader("Authorization"))
		if !ok {
			log.WithFields(logrus.Fields{
				"path":      c.Request.URL.Path,
				"client_ip": c.ClientIP(),
			}).Debug("rejected request without valid credentials")
			c.Header("WWW-Authenticate", gate.Challenge())
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ActionResult{OK: false, Error: "Unauthorized"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity Middleware stored on the context.
func IdentityFrom(c *gin.Context) (*model.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*model.Identity)
	return identity, ok && identity != nil
}
