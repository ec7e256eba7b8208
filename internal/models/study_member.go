package models

import (
	"strconv"
	"time"
)

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

type MemberStatus string

const (
	MemberStatusPending   MemberStatus = "PENDING"
	MemberStatusActive    MemberStatus = "ACTIVE"
	MemberStatusRejected  MemberStatus = "REJECTED"
	MemberStatusRemoved   MemberStatus = "REMOVED"
	MemberStatusSuspended MemberStatus = "SUSPENDED"
)

// IsOpen reports whether the status still occupies the (study, user) slot.
func (s MemberStatus) IsOpen() bool {
	return s == MemberStatusPending || s == MemberStatusActive || s == MemberStatusSuspended
}

type StudyMember struct {
	ID      uint64       `gorm:"primarykey" json:"id"`
	StudyID uint64       `gorm:"not null;index" json:"study_id"`
	UserID  uint64       `gorm:"not null;index" json:"user_id"`
	Role    MemberRole   `gorm:"type:varchar(20);not null" json:"role"`
	Status  MemberStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	// OpenKey is set while the row is PENDING, ACTIVE or SUSPENDED and
	// cleared on REJECTED/REMOVED. Its unique index allows one open row per pair.
	OpenKey    *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	Message    string     `gorm:"type:varchar(500)" json:"message,omitempty"`
	JoinedAt   time.Time  `json:"joined_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Relations
	Study Study `gorm:"foreignKey:StudyID" json:"study,omitempty"`
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func OpenKeyFor(studyID, userID uint64) *string {
	key := strconv.FormatUint(studyID, 10) + ":" + strconv.FormatUint(userID, 10)
	return &key
}

// IsManager reports an ACTIVE OWNER or ADMIN membership.
func (m *StudyMember) IsManager() bool {
	return m.Status == MemberStatusActive && (m.Role == MemberRoleOwner || m.Role == MemberRoleAdmin)
}
