package audit

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nkiryanov/sessionkeeper/internal/logger"
	"github.com/nkiryanov/sessionkeeper/internal/models"
	"github.com/nkiryanov/sessionkeeper/internal/repository"
)

// Persists events to the security events journal
type StoreSink struct {
	repo repository.SecurityEventRepo
	l    logger.Logger
	now  func() time.Time
}

func NewStoreSink(repo repository.SecurityEventRepo, l logger.Logger) *StoreSink {
	return &StoreSink{repo: repo, l: l, now: time.Now}
}

func (s *StoreSink) Record(ctx context.Context, e Event) {
	at := e.At
	if at.IsZero() {
		at = s.now()
	}

	event := models.SecurityEvent{
		ID:         ulid.Make().String(),
		Name:       e.Name,
		Subject:    e.Subject,
		IPAddress:  e.IPAddress,
		Reason:     e.Reason,
		Attributes: e.Attributes,
		CreatedAt:  at,
	}

	// Event must be saved even if the request that caused it is gone
	err := s.repo.Save(context.WithoutCancel(ctx), event)
	if err != nil {
		s.l.Error("failed to save security event", "event", e.Name, "subject", e.Subject, "error", err)
	}
}
