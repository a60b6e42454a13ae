package service

import (
	"context"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.ActivityRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, activity entries are only written to the logger.
func NewAuditService(repo ports.ActivityRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Log records an activity entry asynchronously (fire-and-forget).
func (s *auditService) Log(ctx context.Context, entry *domain.ActivityLog) {
	go func() {
		evt := s.log.Info()
		if entry.Urgent {
			evt = s.log.Warn().Bool("urgent", true)
		}
		evt.
			Str("action", string(entry.Action)).
			Str("resource_type", entry.ResourceType).
			Str("resource_id", entry.ResourceID).
			Str("ip", entry.IPAddress).
			Msg("activity")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), entry); err != nil {
				s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist activity log")
			}
		}
	}()
}
