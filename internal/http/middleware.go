package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/savitara/auth-service/internal/apperr"
	"github.com/savitara/auth-service/internal/metrics"
	"github.com/savitara/auth-service/internal/security"
)

const (
	requestIDKey = "X-Request-ID"
	authUserKey  = "auth_user"
)

// AuthUser is what a verified access token resolves to for the handlers.
type AuthUser struct {
	ID   string
	Role string
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDKey)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDKey, id)
		c.Next()
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.InFlight.Inc()
		start := time.Now()
		c.Next()
		metrics.InFlight.Dec()
		metrics.ReqDuration.WithLabelValues(route, c.Request.Method).
			Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(route, c.Request.Method,
			strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// AuthRequired accepts only access-kind tokens; a refresh token presented
// here is rejected no matter how fresh it is.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			fail(c, apperr.ErrTokenInvalid.WithDetails(map[string]any{"reason": "missing bearer token"}))
			return
		}
		tok := strings.TrimSpace(h[len("Bearer "):])
		claims, err := security.Parse(secret, tok, security.KindAccess)
		if err != nil {
			fail(c, apperr.ErrTokenInvalid.WithCause(err))
			return
		}
		c.Set(authUserKey, AuthUser{ID: claims.Subject, Role: claims.Role})
		c.Next()
	}
}

// RateLimit guards the credential-guessing surface. Fails open when Redis is
// not configured or unreachable; auth must not depend on the limiter being up.
func (h *Handler) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Redis == nil || h.RateLimitPerMin <= 0 {
			c.Next()
			return
		}
		key := "rl:" + c.FullPath() + ":" + c.ClientIP()
		allowed, err := h.Redis.Allow(c.Request.Context(), key, h.RateLimitPerMin, time.Minute)
		if err == nil && !allowed {
			fail(c, apperr.ErrRateLimited)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) AuthUser {
	v, _ := c.Get(authUserKey)
	au, _ := v.(AuthUser)
	return au
}

func requestID(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	s, _ := v.(string)
	return s
}
