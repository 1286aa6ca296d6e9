package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/girderhq/girder/internal/common/config"
	"github.com/girderhq/girder/internal/common/errorx"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// throttleIdleTTL is how long an idle client address keeps its token bucket.
const throttleIdleTTL = 10 * time.Minute

// loggerMiddleware logs incoming requests and outgoing responses
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.logger.Info("incoming request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("remote_addr", c.Request.RemoteAddr),
		)

		c.Next()

		s.logger.Info("outgoing response",
			zap.Int("status", c.Writer.Status()),
			zap.Int("size", c.Writer.Size()),
		)
	}
}

// recoveryMiddleware recovers from panics and returns 500 error
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// corsMiddleware handles CORS configuration for the OAuth endpoints
func (s *Server) corsMiddleware(cors *config.CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			c.Next()
			return
		}

		allowed := false
		for _, allowedOrigin := range cors.AllowOrigins {
			if allowedOrigin == "*" || origin == allowedOrigin {
				allowed = true
				c.Header("Access-Control-Allow-Origin", allowedOrigin)
				break
			}
		}

		if !allowed {
			c.Next()
			return
		}

		if len(cors.AllowMethods) > 0 {
			c.Header("Access-Control-Allow-Methods", strings.Join(cors.AllowMethods, ", "))
		}

		if len(cors.AllowHeaders) > 0 {
			c.Header("Access-Control-Allow-Headers", strings.Join(cors.AllowHeaders, ", "))
		}

		if len(cors.ExposeHeaders) > 0 {
			c.Header("Access-Control-Expose-Headers", strings.Join(cors.ExposeHeaders, ", "))
		}

		if cors.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// throttleMiddleware limits how fast one client address may hit the
// credential-issuing endpoints. With throttling disabled it is a
// pass-through.
func (s *Server) throttleMiddleware() gin.HandlerFunc {
	if !s.cfg.Server.Throttle.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		if !s.ipLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "too many requests from this address",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) ipLimiter(addr string) *rate.Limiter {
	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()
	if item := s.ipLimiters.Get(addr); item != nil {
		return item.Value()
	}
	lim := rate.NewLimiter(rate.Limit(s.cfg.Server.Throttle.RPS), s.cfg.Server.Throttle.Burst)
	s.ipLimiters.Set(addr, lim, ttlcache.DefaultTTL)
	return lim
}

// requireBearer authenticates status API requests against the embedded
// authorization server.
func (s *Server) requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Split(c.GetHeader("Authorization"), " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			s.rejectBearer(c, "missing bearer token")
			return
		}
		if _, err := s.auth.ValidateToken(c.Request.Context(), parts[1]); err != nil {
			s.rejectBearer(c, "invalid or expired access token")
			return
		}
		c.Next()
	}
}

func (s *Server) rejectBearer(c *gin.Context, reason string) {
	c.Header("WWW-Authenticate", `Bearer realm="girder", error="invalid_token"`)
	s.errors.HandleError(c, errorx.NewAuthInvalid(reason))
	c.Abort()
}
