package middleware

import (
	"encoding/json"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful write operations to the activity log.
// Balance-affecting events carry richer detail written by the services;
// this middleware covers the request-level trail.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			return
		}

		action, resourceType := mapPathToAction(c.Request.URL.Path)
		if action == "" {
			return
		}

		var userID *uuid.UUID
		if id, ok := UserID(c); ok {
			userID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.ActivityLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(path string) (domain.ActivityAction, string) {
	switch path {
	case "/api/v1/auth/login":
		return domain.ActivityLogin, "session"
	case "/api/v1/phone-rental/start":
		return domain.ActivitySessionEvent, "rental_session"
	case "/api/v1/voucher-saving":
		return domain.ActivityBalanceChange, "voucher_operation"
	case "/api/v1/cookie-rapid-check":
		return domain.ActivityBalanceChange, "rapid_check"
	case "/api/v1/webhook/bank-deposit":
		return domain.ActivityBalanceChange, "bank_deposit"
	}
	return "", ""
}
