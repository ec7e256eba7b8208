package dto

import (
	"time"

	"github.com/coup-study/coup-api/internal/models"
)

// StudyDTO represents a study in API responses
type StudyDTO struct {
	ID          uint64                 `json:"id"`
	OwnerID     uint64                 `json:"owner_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Visibility  models.StudyVisibility `json:"visibility"`
	MaxMembers  int                    `json:"max_members"`
	AutoApprove bool                   `json:"auto_approve"`
	InviteCode  string                 `json:"invite_code,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// StudyListResponse represents a paginated list of studies
type StudyListResponse struct {
	Studies    []StudyDTO `json:"studies"`
	Pagination Page       `json:"pagination"`
}

// MembershipDTO represents a study membership or join request
type MembershipDTO struct {
	ID         uint64              `json:"id"`
	StudyID    uint64              `json:"study_id"`
	UserID     uint64              `json:"user_id"`
	Role       models.MemberRole   `json:"role"`
	Status     models.MemberStatus `json:"status"`
	Message    string              `json:"message,omitempty"`
	JoinedAt   time.Time           `json:"joined_at"`
	ApprovedAt *time.Time          `json:"approved_at,omitempty"`
	User       *ProfileDTO         `json:"user,omitempty"`
	Study      *StudyDTO           `json:"study,omitempty"`
}

// InviteCodeResponse carries a study's invite code to its managers
type InviteCodeResponse struct {
	InviteCode string `json:"invite_code"`
}

// MembershipCheckResponse answers the internal membership lookup
type MembershipCheckResponse struct {
	Member bool                `json:"member"`
	Role   models.MemberRole   `json:"role,omitempty"`
	Status models.MemberStatus `json:"status,omitempty"`
}

// ToStudyDTO converts a study. The invite code is only included when
// withInviteCode is set.
func ToStudyDTO(study models.Study, withInviteCode bool) StudyDTO {
	out := StudyDTO{
		ID:          study.ID,
		OwnerID:     study.OwnerID,
		Name:        study.Name,
		Description: study.Description,
		Category:    study.Category,
		Visibility:  study.Visibility,
		MaxMembers:  study.MaxMembers,
		AutoApprove: study.AutoApprove,
		CreatedAt:   study.CreatedAt,
		UpdatedAt:   study.UpdatedAt,
	}
	if withInviteCode && study.InviteCode != nil {
		out.InviteCode = *study.InviteCode
	}
	return out
}

func ToStudyDTOs(studies []models.Study) []StudyDTO {
	out := make([]StudyDTO, len(studies))
	for i, s := range studies {
		out[i] = ToStudyDTO(s, false)
	}
	return out
}

func ToMembershipDTO(member models.StudyMember) MembershipDTO {
	out := MembershipDTO{
		ID:         member.ID,
		StudyID:    member.StudyID,
		UserID:     member.UserID,
		Role:       member.Role,
		Status:     member.Status,
		Message:    member.Message,
		JoinedAt:   member.JoinedAt,
		ApprovedAt: member.ApprovedAt,
		User:       toAuthorDTO(member.User),
	}
	if member.Study.ID != 0 {
		study := ToStudyDTO(member.Study, false)
		out.Study = &study
	}
	return out
}

func ToMembershipDTOs(members []models.StudyMember) []MembershipDTO {
	out := make([]MembershipDTO, len(members))
	for i, m := range members {
		out[i] = ToMembershipDTO(m)
	}
	return out
}
