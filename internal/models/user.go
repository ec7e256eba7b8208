package models

import (
	"time"
)

type UserRole string

const (
	UserRoleUser        UserRole = "USER"
	UserRoleAdmin       UserRole = "ADMIN"
	UserRoleSystemAdmin UserRole = "SYSTEM_ADMIN"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
	UserStatusDeleted   UserStatus = "DELETED"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusSuspended, UserStatusDeleted:
		return true
	}
	return false
}

type User struct {
	ID           uint64     `gorm:"primarykey" json:"id"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName  string     `gorm:"type:varchar(50);not null" json:"display_name"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Role         UserRole   `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`
	Status       UserStatus `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Memberships []StudyMember `gorm:"foreignKey:UserID" json:"-"`
}

// IsPlatformAdmin reports whether the global role grants platform-wide moderation.
func (u *User) IsPlatformAdmin() bool {
	return u.Role == UserRoleAdmin || u.Role == UserRoleSystemAdmin
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
