package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coup-study/coup-api/internal/models"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return mr, client
}

func TestRedisPublisher_PublishNotification(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, UserChannel(42))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client)
	err = pub.PublishNotification(ctx, &models.Notification{
		ID:          7,
		RecipientID: 42,
		Type:        models.NotificationJoinApproved,
		Message:     "approved",
		Link:        "/studies/3",
	})
	require.NoError(t, err)

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, "notifications:user:42", msg.Channel)

	var event NotificationEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, uint64(7), event.ID)
	assert.Equal(t, models.NotificationJoinApproved, event.Type)
	assert.Equal(t, "/studies/3", event.Link)
}

func TestRedisPublisher_PublishChat(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, StudyChatChannel(3))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewRedisPublisher(client).PublishChat(ctx, &models.Message{ID: 1, StudyID: 3, SenderID: 9, Content: "hello"}))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var event ChatEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, "hello", event.Content)
	assert.Equal(t, uint64(9), event.SenderID)
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	mr, client := setupRedis(t)
	mr.Close()

	err := NewRedisPublisher(client).PublishNotification(context.Background(), &models.Notification{RecipientID: 1})
	require.Error(t, err)
}
