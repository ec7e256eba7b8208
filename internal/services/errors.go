package services

import (
	"errors"

	"gorm.io/gorm"

	apierrors "github.com/coup-study/coup-api/internal/errors"
)

var (
	ErrUserNotFound         = apierrors.NotFoundError("User")
	ErrStudyNotFound        = apierrors.NotFoundError("Study")
	ErrMembershipNotFound   = apierrors.NotFoundError("Membership")
	ErrNoticeNotFound       = apierrors.NotFoundError("Notice")
	ErrFileNotFound         = apierrors.NotFoundError("File")
	ErrNotificationNotFound = apierrors.NotFoundError("Notification")
	ErrReportNotFound       = apierrors.NotFoundError("Report")

	ErrEmailTaken         = apierrors.ConflictError(apierrors.ErrCodeConflict, "Email is already registered")
	ErrInvalidCredentials = &apierrors.Error{Kind: apierrors.KindUnauthenticated, Code: apierrors.ErrCodeInvalidCredentials, Message: "Invalid email or password"}
	ErrInvalidInviteCode  = apierrors.NotFoundError("Invite code")

	ErrAlreadyMember     = apierrors.ConflictError(apierrors.ErrCodeAlreadyMember, "Already a member of this study")
	ErrAlreadyRequested  = apierrors.ConflictError(apierrors.ErrCodeAlreadyRequested, "A join request is already pending")
	ErrStudyFull         = apierrors.ConflictError(apierrors.ErrCodeStudyFull, "Study has reached its member limit")
	ErrCannotModifyOwner = apierrors.ConflictError(apierrors.ErrCodeCannotModifyOwner, "The study owner's membership cannot be modified")
	ErrCannotRemoveOwner = apierrors.ConflictError(apierrors.ErrCodeCannotRemoveOwner, "The study owner cannot be removed")
	ErrConcurrentUpdate  = apierrors.ConflictError(apierrors.ErrCodeConflict, "The record was changed by another request, reload and retry")
	ErrInvalidRole       = apierrors.InvalidInputError(apierrors.ErrCodeInvalidRole, "Role must be ADMIN or MEMBER")
	ErrCannotModifySelf  = apierrors.ConflictError(apierrors.ErrCodeConflict, "Administrators cannot change their own account status")
)

func invalidInput(message string) error {
	return apierrors.InvalidInputError(apierrors.ErrCodeInvalidInput, message)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
