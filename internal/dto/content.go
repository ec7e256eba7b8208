package dto

import (
	"time"

	"github.com/coup-study/coup-api/internal/models"
)

// NoticeDTO represents a study notice in API responses
type NoticeDTO struct {
	ID        uint64      `json:"id"`
	StudyID   uint64      `json:"study_id"`
	AuthorID  uint64      `json:"author_id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	IsPinned  bool        `json:"is_pinned"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Author    *ProfileDTO `json:"author,omitempty"`
}

// NoticeListResponse represents a paginated list of notices
type NoticeListResponse struct {
	Notices    []NoticeDTO `json:"notices"`
	Pagination Page        `json:"pagination"`
}

// FileDTO represents shared file metadata
type FileDTO struct {
	ID          uint64      `json:"id"`
	StudyID     uint64      `json:"study_id"`
	UploaderID  uint64      `json:"uploader_id"`
	Name        string      `json:"name"`
	ContentType string      `json:"content_type"`
	Size        int64       `json:"size"`
	CreatedAt   time.Time   `json:"created_at"`
	Uploader    *ProfileDTO `json:"uploader,omitempty"`
}

// FileListResponse represents a paginated list of files
type FileListResponse struct {
	Files      []FileDTO `json:"files"`
	Pagination Page      `json:"pagination"`
}

// DownloadURLResponse carries a short-lived download link
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MessageDTO represents a chat message
type MessageDTO struct {
	ID        uint64      `json:"id"`
	StudyID   uint64      `json:"study_id"`
	SenderID  uint64      `json:"sender_id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Sender    *ProfileDTO `json:"sender,omitempty"`
}

// MessageListResponse represents a paginated list of chat messages
type MessageListResponse struct {
	Messages   []MessageDTO `json:"messages"`
	Pagination Page         `json:"pagination"`
}

// NotificationDTO represents an in-app notification
type NotificationDTO struct {
	ID        uint64                  `json:"id"`
	Type      models.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Link      string                  `json:"link,omitempty"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NotificationListResponse represents a paginated list of notifications
type NotificationListResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Pagination    Page              `json:"pagination"`
}

// UnreadCountResponse carries the caller's unread notification count
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

func ToNoticeDTO(notice models.Notice) NoticeDTO {
	return NoticeDTO{
		ID:        notice.ID,
		StudyID:   notice.StudyID,
		AuthorID:  notice.AuthorID,
		Title:     notice.Title,
		Content:   notice.Content,
		IsPinned:  notice.IsPinned,
		CreatedAt: notice.CreatedAt,
		UpdatedAt: notice.UpdatedAt,
		Author:    toAuthorDTO(notice.Author),
	}
}

func ToNoticeDTOs(notices []models.Notice) []NoticeDTO {
	out := make([]NoticeDTO, len(notices))
	for i, n := range notices {
		out[i] = ToNoticeDTO(n)
	}
	return out
}

func ToFileDTO(file models.File) FileDTO {
	return FileDTO{
		ID:          file.ID,
		StudyID:     file.StudyID,
		UploaderID:  file.UploaderID,
		Name:        file.Name,
		ContentType: file.ContentType,
		Size:        file.Size,
		CreatedAt:   file.CreatedAt,
		Uploader:    toAuthorDTO(file.Uploader),
	}
}

func ToFileDTOs(files []models.File) []FileDTO {
	out := make([]FileDTO, len(files))
	for i, f := range files {
		out[i] = ToFileDTO(f)
	}
	return out
}

func ToMessageDTO(msg models.Message) MessageDTO {
	return MessageDTO{
		ID:        msg.ID,
		StudyID:   msg.StudyID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		Sender:    toAuthorDTO(msg.Sender),
	}
}

func ToMessageDTOs(messages []models.Message) []MessageDTO {
	out := make([]MessageDTO, len(messages))
	for i, m := range messages {
		out[i] = ToMessageDTO(m)
	}
	return out
}

func ToNotificationDTO(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func ToNotificationDTOs(notifications []models.Notification) []NotificationDTO {
	out := make([]NotificationDTO, len(notifications))
	for i, n := range notifications {
		out[i] = ToNotificationDTO(n)
	}
	return out
}
