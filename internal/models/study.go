package models

import (
	"time"

	"gorm.io/gorm"
)

type StudyVisibility string

const (
	VisibilityPublic  StudyVisibility = "PUBLIC"
	VisibilityPrivate StudyVisibility = "PRIVATE"
)

type Study struct {
	ID          uint64          `gorm:"primarykey" json:"id"`
	OwnerID     uint64          `gorm:"not null;index" json:"owner_id"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"type:varchar(50);index" json:"category"`
	Visibility  StudyVisibility `gorm:"type:varchar(10);not null;default:'PUBLIC'" json:"visibility"`
	MaxMembers  int             `gorm:"not null;default:0" json:"max_members"`
	AutoApprove bool            `gorm:"not null;default:false" json:"auto_approve"`
	InviteCode  *string         `gorm:"type:varchar(50);uniqueIndex" json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relations
	Owner   User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members []StudyMember `gorm:"foreignKey:StudyID" json:"members,omitempty"`
}

// HasCapacity reports whether another ACTIVE member fits. MaxMembers <= 0 is unlimited.
func (s *Study) HasCapacity(activeMembers int64) bool {
	return s.MaxMembers <= 0 || activeMembers < int64(s.MaxMembers)
}

func (s *Study) IsPrivate() bool {
	return s.Visibility == VisibilityPrivate
}
