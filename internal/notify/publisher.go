// Package notify hands notifications and chat messages to the real-time
// server through Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/coup-study/coup-api/internal/models"
)

// Publisher delivers events to per-user and per-study channels.
type Publisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
	PublishChat(ctx context.Context, m *models.Message) error
}

func UserChannel(userID uint64) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

func StudyChatChannel(studyID uint64) string {
	return fmt.Sprintf("study:%d:chat", studyID)
}

// NotificationEvent is the payload published on a user channel.
type NotificationEvent struct {
	ID        uint64                  `json:"id"`
	Type      models.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Link      string                  `json:"link,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// ChatEvent is the payload published on a study chat channel.
type ChatEvent struct {
	ID        uint64    `json:"id"`
	StudyID   uint64    `json:"study_id"`
	SenderID  uint64    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishNotification(ctx context.Context, n *models.Notification) error {
	return p.publish(ctx, UserChannel(n.RecipientID), NotificationEvent{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: n.CreatedAt,
	})
}

func (p *RedisPublisher) PublishChat(ctx context.Context, m *models.Message) error {
	return p.publish(ctx, StudyChatChannel(m.StudyID), ChatEvent{
		ID:        m.ID,
		StudyID:   m.StudyID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	})
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", channel, err)
	}
	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishNotification(context.Context, *models.Notification) error { return nil }
func (NopPublisher) PublishChat(context.Context, *models.Message) error               { return nil }
