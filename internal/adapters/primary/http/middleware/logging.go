package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// probe routes are polled constantly and only logged at debug level
var probeRoutes = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"status":     status,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      c.FullPath(),
			"bytes":      c.Writer.Size(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(ContextKeyID),
		})
		if user := c.GetString(ContextKeyUser); user != "" {
			entry = entry.WithField("user", user)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		case probeRoutes[c.FullPath()]:
			entry.Debug("request completed")
		default:
			entry.Info("request completed")
		}
	}
}
