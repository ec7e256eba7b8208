package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/coup-study/coup-api/internal/authz"
	"github.com/coup-study/coup-api/internal/constants"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/notify"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/utils"
)

// MessageService stores study chat history and hands new messages to the
// real-time server through the publisher.
type MessageService struct {
	messageRepo repository.MessageRepository
	studyRepo   repository.StudyRepository
	guard       *Guard
	pub         notify.Publisher
	log         *zap.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, studyRepo repository.StudyRepository, guard *Guard, pub notify.Publisher, log *zap.Logger) *MessageService {
	if pub == nil {
		pub = notify.NopPublisher{}
	}
	return &MessageService{
		messageRepo: messageRepo,
		studyRepo:   studyRepo,
		guard:       guard,
		pub:         pub,
		log:         log.Named("chat"),
	}
}

// PostMessage stores a chat message. Publishing is best-effort.
func (s *MessageService) PostMessage(ctx context.Context, actor *models.User, studyID uint64, content string) (*models.Message, error) {
	if _, err := loadStudy(ctx, s.studyRepo, studyID); err != nil {
		return nil, err
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindStudy, StudyID: studyID}); err != nil {
		return nil, err
	}

	text := utils.SanitizePlainText(content)
	if text == "" {
		return nil, invalidInput("Message is empty")
	}
	if len([]rune(text)) > constants.MaxChatMessageLen {
		return nil, invalidInput(fmt.Sprintf("Message must be at most %d characters", constants.MaxChatMessageLen))
	}

	message := &models.Message{
		StudyID:  studyID,
		SenderID: actor.ID,
		Content:  text,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	message.Sender = *actor

	if err := s.pub.PublishChat(ctx, message); err != nil {
		s.log.Warn("failed to publish chat message",
			zap.Uint64("study_id", studyID),
			zap.Uint64("message_id", message.ID),
			zap.Error(err))
	}
	return message, nil
}

// ListMessages returns chat history, newest first.
func (s *MessageService) ListMessages(ctx context.Context, actor *models.User, studyID uint64, page utils.PaginationParams) ([]models.Message, int64, error) {
	if _, err := loadStudy(ctx, s.studyRepo, studyID); err != nil {
		return nil, 0, err
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindStudy, StudyID: studyID}); err != nil {
		return nil, 0, err
	}

	messages, total, err := s.messageRepo.ListByStudy(ctx, studyID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, total, nil
}
