package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/richardliu001/smm-panel/internal/model"
	"gorm.io/gorm"
)

// notify inserts notifications plus one outbox event each, inside tx, so a
// push is announced only if the workflow commits.
func (s *PanelService) notify(ctx context.Context, tx *gorm.DB, rows ...*model.Notification) error {
	if err := s.repo.CreateNotifications(ctx, tx, rows...); err != nil {
		return err
	}
	for _, n := range rows {
		evt := &model.OutboxEvent{
			Aggregate:    "notification",
			AggregateID:  n.ID.String(),
			PartitionKey: n.UserID.String(),
			EventType:    model.EventNotificationCreated,
			Payload:      model.JSON(n),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PanelService) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]model.Notification, error) {
	ns, err := s.repo.ListNotifications(ctx, nil, userID, unreadOnly, clampLimit(limit, 50, 200))
	if err != nil {
		return nil, s.fail("list notifications", err)
	}
	return ns, nil
}

func (s *PanelService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.CountUnread(ctx, nil, userID)
	if err != nil {
		return 0, s.fail("count unread", err)
	}
	return n, nil
}

// MarkRead flips the read flag of one of the user's own notifications.
func (s *PanelService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.repo.MarkNotificationRead(ctx, nil, userID, notificationID); err != nil {
		return s.fail("mark notification read", err)
	}
	return nil
}

func (s *PanelService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllNotificationsRead(ctx, nil, userID)
	if err != nil {
		return 0, s.fail("mark all read", err)
	}
	return n, nil
}
