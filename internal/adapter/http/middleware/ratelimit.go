package middleware

import (
	"fmt"
	"time"

	"phone-rental-gateway/internal/antispam"
	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"
	"phone-rental-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AntiSpam creates a per-user sliding-window limiter middleware for one
// service key. Tripping the limiter is itself an audited event. Must run
// after Authenticate.
func AntiSpam(limiter *antispam.Limiter, serviceKey string, auditSvc ports.AuditService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		decision := limiter.Check(userID.String(), serviceKey)
		if decision.Allowed {
			c.Next()
			return
		}

		sec := int(decision.RetryAfter.Seconds())
		if sec < 1 {
			sec = 1
		}
		log.Warn().
			Str("user_id", userID.String()).
			Str("service", serviceKey).
			Int("retry_after", sec).
			Msg("anti-spam limit tripped")

		if auditSvc != nil {
			auditSvc.Log(c.Request.Context(), &domain.ActivityLog{
				ID:           uuid.New(),
				UserID:       &userID,
				Action:       domain.ActivityRateLimitTrip,
				ResourceType: "service",
				ResourceID:   serviceKey,
				Details:      fmt.Sprintf(`{"retry_after_sec":%d}`, sec),
				IPAddress:    c.ClientIP(),
				CreatedAt:    time.Now().UTC(),
			})
		}

		response.Error(c, apperror.ErrRateLimited(sec))
		c.Abort()
	}
}
