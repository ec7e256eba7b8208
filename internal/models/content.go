package models

import (
	"time"

	"gorm.io/gorm"
)

type Notice struct {
	ID        uint64         `gorm:"primarykey" json:"id"`
	StudyID   uint64         `gorm:"not null;index" json:"study_id"`
	AuthorID  uint64         `gorm:"not null" json:"author_id"`
	Title     string         `gorm:"type:varchar(200);not null" json:"title"`
	Content   string         `gorm:"type:text" json:"content"`
	IsPinned  bool           `gorm:"not null;default:false" json:"is_pinned"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

type File struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	StudyID     uint64    `gorm:"not null;index" json:"study_id"`
	UploaderID  uint64    `gorm:"not null;index" json:"uploader_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	ObjectKey   string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	ContentType string    `gorm:"type:varchar(100)" json:"content_type"`
	Size        int64     `gorm:"not null" json:"size"`
	CreatedAt   time.Time `json:"created_at"`

	// Relations
	Uploader User `gorm:"foreignKey:UploaderID" json:"uploader,omitempty"`
}

type Message struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	StudyID   uint64    `gorm:"not null;index" json:"study_id"`
	SenderID  uint64    `gorm:"not null" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Relations
	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
