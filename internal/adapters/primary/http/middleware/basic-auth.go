package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"model-artefact-registry/internal/core/domain"
	"model-artefact-registry/internal/metrics"
)

const ContextKeyUser = "user"

// Authenticator checks a username and password pair.
type Authenticator interface {
	Authenticate(username, password string) error
}

// BasicAuth rejects requests whose HTTP Basic credentials do not pass the
// authenticator. Missing or malformed headers are rejected the same way.
func BasicAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || auth.Authenticate(username, password) != nil {
			metrics.AuthFailures.Inc()
			log.WithFields(log.Fields{
				"path":       c.Request.URL.Path,
				"request_id": c.GetString(ContextKeyID),
			}).Warn("authentication failed")

			c.Header("WWW-Authenticate", "Basic")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": domain.ErrUnauthorized.Error()})
			return
		}

		c.Set(ContextKeyUser, username)
		c.Next()
	}
}
