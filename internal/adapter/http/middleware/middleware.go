package middleware

import (
	"net/http"
	"strings"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"
	"phone-rental-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderAPIKey carries the API-key alternative to a bearer token.
	HeaderAPIKey = "X-API-Key"

	// Context keys
	CtxUserID    = "user_id"
	CtxUserRole  = "user_role"
	CtxRequestID = "request_id"
)

// RequestID assigns every request an id used in logs and response envelopes.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Authenticate resolves the caller from a Bearer JWT or an X-API-Key header.
// JWT wins when both are present. The API-key path hits the user store and
// also enforces the active flag; the JWT path trusts the signed claims.
func Authenticate(tokenSvc ports.TokenService, userRepo ports.UserRepository, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); auth != "" {
			if !strings.HasPrefix(auth, "Bearer ") {
				response.Error(c, apperror.ErrInvalidToken())
				c.Abort()
				return
			}
			claims, err := tokenSvc.Validate(auth[7:])
			if err != nil {
				response.Error(c, apperror.ErrInvalidToken())
				c.Abort()
				return
			}
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxUserRole, claims.Role)
			c.Next()
			return
		}

		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		user, err := userRepo.GetByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			log.Error().Err(err).Msg("api key lookup failed")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if user == nil {
			response.Error(c, apperror.ErrInvalidAPIKey())
			c.Abort()
			return
		}
		if !user.Active {
			response.Error(c, apperror.ErrAccountDisabled())
			c.Abort()
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxUserRole, user.Role)
		c.Next()
	}
}

// RequireAdmin gates admin surfaces. Must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(CtxUserRole)
		if !exists {
			response.Error(c, apperror.ErrForbidden())
			c.Abort()
			return
		}
		r, ok := role.(domain.Role)
		if !ok || (r != domain.RoleAdmin && r != domain.RoleSuperadmin) {
			response.Error(c, apperror.ErrForbidden())
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID extracts the authenticated caller id set by Authenticate.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(CtxUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Lỗi hệ thống, vui lòng thử lại sau",
				})
			}
		}()
		c.Next()
	}
}
