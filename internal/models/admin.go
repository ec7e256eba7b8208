package models

import "time"

type TargetType string

const (
	TargetUser       TargetType = "USER"
	TargetStudy      TargetType = "STUDY"
	TargetMembership TargetType = "MEMBERSHIP"
	TargetReport     TargetType = "REPORT"
	TargetNotice     TargetType = "NOTICE"
	TargetFile       TargetType = "FILE"
	TargetMessage    TargetType = "MESSAGE"
)

// Admin actions recorded in the admin log
const (
	ActionUserStatus          = "user.status"
	ActionStudyDelete         = "study.delete"
	ActionReportResolve       = "report.resolve"
	ActionReportDismiss       = "report.dismiss"
	ActionMembershipApprove   = "membership.approve"
	ActionMembershipReject    = "membership.reject"
	ActionMembershipRole      = "membership.role"
	ActionMembershipRemove    = "membership.remove"
	ActionMembershipSuspend   = "membership.suspend"
	ActionMembershipReinstate = "membership.reinstate"
	ActionStudyUpdate         = "study.update"
	ActionStudyInviteRegen    = "study.invite_regen"
	ActionNoticeCreate        = "notice.create"
	ActionNoticePin           = "notice.pin"
	ActionNoticeDelete        = "notice.delete"
)

// AdminLog is append-only. Nothing in the code base updates or deletes it.
type AdminLog struct {
	ID         uint64     `gorm:"primarykey" json:"id"`
	AdminID    uint64     `gorm:"not null;index" json:"admin_id"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	TargetType TargetType `gorm:"type:varchar(20);not null;index" json:"target_type"`
	TargetID   uint64     `gorm:"not null" json:"target_id"`
	Reason     string     `gorm:"type:varchar(500)" json:"reason,omitempty"`
	IPAddress  string     `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`

	// Relations
	Admin User `gorm:"foreignKey:AdminID" json:"-"`
}

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "PENDING"
	ReportStatusResolved  ReportStatus = "RESOLVED"
	ReportStatusDismissed ReportStatus = "DISMISSED"
)

type Report struct {
	ID         uint64       `gorm:"primarykey" json:"id"`
	ReporterID uint64       `gorm:"not null;index" json:"reporter_id"`
	TargetType TargetType   `gorm:"type:varchar(20);not null" json:"target_type"`
	TargetID   uint64       `gorm:"not null" json:"target_id"`
	Reason     string       `gorm:"type:varchar(500);not null" json:"reason"`
	Status     ReportStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ResolvedBy *uint64      `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
