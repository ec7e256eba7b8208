package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coup-study/coup-api/internal/constants"
	"github.com/coup-study/coup-api/internal/metrics"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
)

const deliveryTimeout = 5 * time.Second

// Notifier stores notifications and pushes them to the recipient's channel.
type Notifier struct {
	repo    repository.NotificationRepository
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewNotifier(repo repository.NotificationRepository, pub Publisher, log *zap.Logger, m *metrics.Metrics) *Notifier {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Notifier{
		repo:    repo,
		pub:     pub,
		log:     log.Named("notify"),
		metrics: m,
	}
}

// Create stores a notification and publishes it. Only the store is required
// to succeed; publish failures are logged.
func (n *Notifier) Create(ctx context.Context, recipientID uint64, typ models.NotificationType, message, link string) (*models.Notification, error) {
	notification := &models.Notification{
		RecipientID: recipientID,
		Type:        typ,
		Message:     message,
		Link:        link,
	}
	if err := n.repo.Create(ctx, notification); err != nil {
		n.metrics.NotificationFailed("store")
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	if err := n.pub.PublishNotification(ctx, notification); err != nil {
		n.metrics.NotificationFailed("publish")
		n.log.Warn("failed to publish notification",
			zap.Uint64("notification_id", notification.ID),
			zap.Uint64("recipient_id", recipientID),
			zap.Error(err))
	}
	return notification, nil
}

// Notify is best-effort: it never fails the operation that triggered it.
func (n *Notifier) Notify(ctx context.Context, recipientID uint64, typ models.NotificationType, message, link string) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	if _, err := n.Create(ctx, recipientID, typ, message, link); err != nil {
		n.log.Warn("dropped notification",
			zap.Uint64("recipient_id", recipientID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

// NotifyMany fans a notification out to recipients with bounded concurrency
// and returns once every delivery attempt finished.
func (n *Notifier) NotifyMany(ctx context.Context, recipientIDs []uint64, typ models.NotificationType, message, link string) {
	if n == nil || len(recipientIDs) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(constants.NotifyConcurrency)
	for _, id := range recipientIDs {
		g.Go(func() error {
			n.Notify(ctx, id, typ, message, link)
			return nil
		})
	}
	_ = g.Wait()
}
