package notification

import (
	"context"

	"go.uber.org/zap"
)

type NotificationService interface {
	// CreateNotification persists an in-app notification and pushes it to the
	// user's live websocket connections.
	CreateNotification(ctx context.Context, tenantID, userID, title, message string, metadata map[string]string) error

	GetUserNotifications(ctx context.Context, tenantID, userID string, page, limit int64) ([]Notification, int64, error)
	GetUnreadCount(ctx context.Context, tenantID, userID string) (int64, error)
	MarkAsRead(ctx context.Context, tenantID, userID, id string) error
	MarkAllAsRead(ctx context.Context, tenantID, userID string) error
}

type NotificationServiceImpl struct {
	Repo   NotificationRepository
	Hub    *Hub
	Logger *zap.Logger
}

func NewNotificationService(repo NotificationRepository, hub *Hub, logger *zap.Logger) NotificationService {
	return &NotificationServiceImpl{
		Repo:   repo,
		Hub:    hub,
		Logger: logger,
	}
}

func (s *NotificationServiceImpl) CreateNotification(ctx context.Context, tenantID, userID, title, message string, metadata map[string]string) error {
	n := &Notification{
		TenantID: tenantID,
		UserID:   userID,
		Title:    title,
		Message:  message,
		Metadata: metadata,
	}
	if err := s.Repo.Create(ctx, n); err != nil {
		return err
	}

	s.Hub.Push(tenantID, userID, n)
	return nil
}

func (s *NotificationServiceImpl) GetUserNotifications(ctx context.Context, tenantID, userID string, page, limit int64) ([]Notification, int64, error) {
	return s.Repo.ListByUser(ctx, tenantID, userID, page, limit)
}

func (s *NotificationServiceImpl) GetUnreadCount(ctx context.Context, tenantID, userID string) (int64, error) {
	return s.Repo.CountUnread(ctx, tenantID, userID)
}

func (s *NotificationServiceImpl) MarkAsRead(ctx context.Context, tenantID, userID, id string) error {
	return s.Repo.MarkAsRead(ctx, tenantID, userID, id)
}

func (s *NotificationServiceImpl) MarkAllAsRead(ctx context.Context, tenantID, userID string) error {
	return s.Repo.MarkAllAsRead(ctx, tenantID, userID)
}
