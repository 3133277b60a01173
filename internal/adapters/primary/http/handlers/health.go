package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health pings every configured store.
func (h *Handler) Health(c *gin.Context) {
	status := gin.H{}
	healthy := true
	for name, check := range h.checks {
		if err := check.Ping(c.Request.Context()); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": status})
}
