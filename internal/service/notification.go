package service

import (
	"context"
	"log/slog"

	"github.com/sakif/storyline/internal/metrics"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

// Notifier is the post-commit step run after a successful like, comment,
// follow or story view. It has no error result: the triggering action has
// already happened and must not be reported as failed because its
// notification could not be written.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

type NotificationService struct {
	repo    repository.NotificationRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ Notifier = (*NotificationService)(nil)

func NewNotificationService(repo repository.NotificationRepository, m *metrics.Metrics, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, metrics: m, logger: logger}
}

// Notify writes the notification. Self-addressed notifications are dropped
// here as well as at the call sites.
func (s *NotificationService) Notify(ctx context.Context, n model.Notification) {
	if n.RecipientID == "" || n.RecipientID == n.FromUserID {
		return
	}

	err := s.repo.CreateNotification(ctx, &n)
	s.metrics.Notification(string(n.Type), err)
	if err != nil {
		s.logger.Error("failed to write notification",
			slog.String("type", string(n.Type)),
			slog.String("recipient", n.RecipientID),
			slog.String("from", n.FromUserID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Debug("notification written",
		slog.String("id", n.ID),
		slog.String("type", string(n.Type)),
		slog.String("recipient", n.RecipientID),
	)
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID string, page Page) ([]model.Notification, error) {
	return s.repo.ListNotifications(ctx, recipientID, page.Options())
}
