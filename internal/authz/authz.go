// Package authz decides whether an identity may exercise a capability on a
// resource. Decisions are pure: callers load the identity and the caller's
// membership fresh for every request and pass them in.
package authz

import (
	"crypto/subtle"

	"github.com/coup-study/coup-api/internal/models"
)

type Capability string

const (
	CapView            Capability = "VIEW"
	CapEditProfile     Capability = "EDIT_PROFILE"
	CapStudyManage     Capability = "STUDY_MANAGE"
	CapFileDelete      Capability = "FILE_DELETE"
	CapAdminAction     Capability = "ADMIN_ACTION"
	CapInternalService Capability = "INTERNAL_SERVICE"
)

// Reason explains a denial. Values are part of the API error contract.
type Reason string

const (
	ReasonNotAuthenticated   Reason = "NotAuthenticated"
	ReasonNotAMember         Reason = "NotAMember"
	ReasonInsufficientRole   Reason = "InsufficientRole"
	ReasonNotOwnerOrUploader Reason = "NotOwnerOrUploader"
	ReasonInvalidInternalKey Reason = "InvalidInternalKey"
)

// Rule names the rule that granted an allow.
type Rule string

const (
	ViaGlobalRole  Rule = "global_role"
	ViaStudyRole   Rule = "study_role"
	ViaOwnership   Rule = "ownership"
	ViaInternalKey Rule = "internal_key"
)

type ResourceKind string

const (
	KindPlatform     ResourceKind = "platform"
	KindUser         ResourceKind = "user"
	KindStudy        ResourceKind = "study"
	KindMembership   ResourceKind = "membership"
	KindNotice       ResourceKind = "notice"
	KindFile         ResourceKind = "file"
	KindNotification ResourceKind = "notification"
)

// Resource describes what is being accessed.
type Resource struct {
	Kind    ResourceKind
	StudyID uint64

	// OwnerID is the user the resource belongs to: the profile's user, the
	// membership's member, the notice's author, the file's uploader or the
	// notification's recipient. Zero means no owner.
	OwnerID uint64

	// Membership is the caller's membership in StudyID, nil if none.
	Membership *models.StudyMember

	// InternalKey is the shared secret presented with an internal call.
	InternalKey string
}

type Decision struct {
	Allowed bool
	Reason  Reason
	Via     Rule
}

func allow(via Rule) Decision {
	return Decision{Allowed: true, Via: via}
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Engine holds the configuration the decision function needs.
type Engine struct {
	internalKey []byte
}

// NewEngine returns an engine. An empty internal key denies every
// INTERNAL_SERVICE request.
func NewEngine(internalKey string) *Engine {
	return &Engine{internalKey: []byte(internalKey)}
}

// Authorize decides whether identity may exercise capability on res.
//
// Platform admins (ADMIN, SYSTEM_ADMIN) hold ADMIN_ACTION and may view and
// manage any study. EDIT_PROFILE, FILE_DELETE and notification access stay
// with the resource owner or the study's managers.
func (e *Engine) Authorize(identity *models.User, capability Capability, res Resource) Decision {
	if capability == CapInternalService {
		return e.authorizeInternal(res.InternalKey)
	}

	if identity == nil || identity.ID == 0 || !identity.IsActive() {
		return deny(ReasonNotAuthenticated)
	}

	switch capability {
	case CapAdminAction:
		if identity.IsPlatformAdmin() {
			return allow(ViaGlobalRole)
		}
		return deny(ReasonInsufficientRole)

	case CapEditProfile:
		if res.Kind == KindUser && res.OwnerID == identity.ID {
			return allow(ViaOwnership)
		}
		return deny(ReasonNotOwnerOrUploader)

	case CapFileDelete:
		if res.OwnerID != 0 && res.OwnerID == identity.ID {
			return allow(ViaOwnership)
		}
		if isManager(res.Membership, identity.ID, res.StudyID) {
			return allow(ViaStudyRole)
		}
		return deny(ReasonNotOwnerOrUploader)

	case CapView:
		return e.authorizeView(identity, res)

	case CapStudyManage:
		return e.authorizeManage(identity, res)
	}

	return deny(ReasonInsufficientRole)
}

func (e *Engine) authorizeView(identity *models.User, res Resource) Decision {
	switch res.Kind {
	case KindUser:
		return allow(ViaOwnership)
	case KindNotification:
		if res.OwnerID == identity.ID {
			return allow(ViaOwnership)
		}
		return deny(ReasonNotOwnerOrUploader)
	}

	if isActiveMember(res.Membership, identity.ID, res.StudyID) {
		return allow(ViaStudyRole)
	}
	if identity.IsPlatformAdmin() {
		return allow(ViaGlobalRole)
	}
	return deny(ReasonNotAMember)
}

func (e *Engine) authorizeManage(identity *models.User, res Resource) Decision {
	// Members may act on what they own: leave a study, delete their notice.
	if (res.Kind == KindMembership || res.Kind == KindNotice) && res.OwnerID != 0 && res.OwnerID == identity.ID {
		return allow(ViaOwnership)
	}

	if isManager(res.Membership, identity.ID, res.StudyID) {
		return allow(ViaStudyRole)
	}
	if identity.IsPlatformAdmin() {
		return allow(ViaGlobalRole)
	}
	if isActiveMember(res.Membership, identity.ID, res.StudyID) {
		return deny(ReasonInsufficientRole)
	}
	return deny(ReasonNotAMember)
}

func (e *Engine) authorizeInternal(presented string) Decision {
	if len(e.internalKey) == 0 || presented == "" {
		return deny(ReasonInvalidInternalKey)
	}
	if subtle.ConstantTimeCompare(e.internalKey, []byte(presented)) != 1 {
		return deny(ReasonInvalidInternalKey)
	}
	return allow(ViaInternalKey)
}

func isActiveMember(m *models.StudyMember, userID, studyID uint64) bool {
	return m != nil && m.UserID == userID && m.StudyID == studyID && m.Status == models.MemberStatusActive
}

func isManager(m *models.StudyMember, userID, studyID uint64) bool {
	return isActiveMember(m, userID, studyID) && m.IsManager()
}
