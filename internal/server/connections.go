package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/girderhq/girder/internal/common/errorx"

	"github.com/gin-gonic/gin"
)

// handleConnectionStatus reports whether (provider, identity) holds a stored
// credential and how much rate-limit quota the pair has left. Token material
// never appears in the response.
func (s *Server) handleConnectionStatus(c *gin.Context) {
	providerName := c.Param("provider")
	identity := c.Param("identity")

	if _, err := s.registry.Get(providerName); err != nil {
		s.errors.HandleError(c, err)
		return
	}

	remaining, retryAfter := s.limiter.Snapshot(providerName + "/" + identity)
	rate := gin.H{
		"remaining":           remaining,
		"retry_after_seconds": 0,
	}
	if retryAfter > 0 {
		rate["retry_after_seconds"] = errorx.RetryAfterSeconds(retryAfter)
	}

	cred, err := s.vault.Get(c.Request.Context(), providerName, identity)
	if err != nil {
		if errors.Is(err, errorx.ErrNotConnected) {
			c.JSON(http.StatusOK, gin.H{
				"connected": false,
				"rate":      rate,
			})
			return
		}
		s.errors.HandleError(c, err)
		return
	}

	body := gin.H{
		"connected":   true,
		"environment": cred.Environment,
		"rate":        rate,
	}
	if cred.ExpiresAt != nil {
		body["expires_at"] = cred.ExpiresAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}
