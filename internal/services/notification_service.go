package services

import (
	"context"
	"fmt"

	"github.com/coup-study/coup-api/internal/authz"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/notify"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/utils"
)

// NotificationService serves a user's own notifications.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	guard            *Guard
	notifier         *notify.Notifier
}

func NewNotificationService(notificationRepo repository.NotificationRepository, userRepo repository.UserRepository, guard *Guard, notifier *notify.Notifier) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		guard:            guard,
		notifier:         notifier,
	}
}

func (s *NotificationService) ListNotifications(ctx context.Context, actor *models.User, unreadOnly bool, page utils.PaginationParams) ([]models.Notification, int64, error) {
	list, total, err := s.notificationRepo.ListByRecipient(ctx, actor.ID, unreadOnly, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, total, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor *models.User) (int64, error) {
	count, err := s.notificationRepo.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, actor *models.User, notificationID uint64) error {
	n, err := s.findOwned(ctx, actor, notificationID)
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	if err := s.notificationRepo.MarkRead(ctx, n.ID); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.User) (int64, error) {
	updated, err := s.notificationRepo.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return updated, nil
}

func (s *NotificationService) DeleteNotification(ctx context.Context, actor *models.User, notificationID uint64) error {
	n, err := s.findOwned(ctx, actor, notificationID)
	if err != nil {
		return err
	}
	if err := s.notificationRepo.Delete(ctx, n.ID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// CreateForService creates a notification on behalf of an internal service,
// such as the signalling server announcing a call. The caller has already
// presented the internal key.
func (s *NotificationService) CreateForService(ctx context.Context, recipientID uint64, typ models.NotificationType, message, link string) (*models.Notification, error) {
	message = utils.SanitizePlainText(message)
	if message == "" {
		return nil, invalidInput("Message is required")
	}
	if typ == "" {
		typ = models.NotificationSystem
	}

	if _, err := s.userRepo.FindByID(ctx, recipientID); err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find recipient: %w", err)
	}
	return s.notifier.Create(ctx, recipientID, typ, message, link)
}

func (s *NotificationService) findOwned(ctx context.Context, actor *models.User, id uint64) (*models.Notification, error) {
	n, err := s.notificationRepo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindNotification, OwnerID: n.RecipientID}); err != nil {
		return nil, err
	}
	return n, nil
}
