package models

import "time"

type NotificationType string

const (
	NotificationJoinRequest      NotificationType = "JOIN_REQUEST"
	NotificationJoinApproved     NotificationType = "JOIN_APPROVED"
	NotificationJoinRejected     NotificationType = "JOIN_REJECTED"
	NotificationRoleChanged      NotificationType = "ROLE_CHANGED"
	NotificationMemberRemoved    NotificationType = "MEMBER_REMOVED"
	NotificationMemberSuspended  NotificationType = "MEMBER_SUSPENDED"
	NotificationMemberReinstated NotificationType = "MEMBER_REINSTATED"
	NotificationNewNotice        NotificationType = "NEW_NOTICE"
	NotificationNewFile          NotificationType = "NEW_FILE"
	NotificationSystem           NotificationType = "SYSTEM"
)

type Notification struct {
	ID          uint64           `gorm:"primarykey" json:"id"`
	RecipientID uint64           `gorm:"not null;index:idx_notifications_recipient_read" json:"recipient_id"`
	Type        NotificationType `gorm:"type:varchar(40);not null" json:"type"`
	Message     string           `gorm:"type:varchar(500);not null" json:"message"`
	Link        string           `gorm:"type:varchar(255)" json:"link,omitempty"`
	IsRead      bool             `gorm:"not null;default:false;index:idx_notifications_recipient_read" json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}
