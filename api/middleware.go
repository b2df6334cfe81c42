package api

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/domestiq/bookingcore/internal/auth"
	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey = "request_id"
	actorKey     = "actor"
)

// RequestID ensures every request has an ID for tracing and logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger prints one line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[HTTP] request_id=%s method=%s path=%s status=%d latency_ms=%.3f",
			GetRequestID(c),
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			float64(time.Since(start).Microseconds())/1000.0,
		)
	}
}

// JWTAuth resolves the bearer token to an actor and stores it on the context.
func JWTAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
			c.Abort()
			return
		}
		actor, err := tokens.Actor(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid token", nil)
			c.Abort()
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "unauthorized", "not signed in", nil)
			c.Abort()
			return
		}
		if _, ok := allowed[actor.Role]; !ok {
			respondError(c, http.StatusForbidden, "forbidden", "role not allowed", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

// mustActor writes 401 and returns false when no actor was set.
func mustActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "not signed in", nil)
	}
	return actor, ok
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "id: must be a uuid", nil)
		return uuid.Nil, false
	}
	return id, true
}
