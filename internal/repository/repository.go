package repository

import (
	"context"
	"errors"
	"time"

	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/utils"
)

// ErrStaleTransition is returned by conditional updates that matched no row
// because the row was no longer in the expected state.
var ErrStaleTransition = errors.New("repository: row not in expected state")

// ErrCapacityReached is returned when activating a membership would take a
// study past its MaxMembers.
var ErrCapacityReached = errors.New("repository: study is at capacity")

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateProfile updates the self-service profile fields
	UpdateProfile(ctx context.Context, id uint64, displayName string) error

	// UpdateStatus sets the account status
	UpdateStatus(ctx context.Context, id uint64, status models.UserStatus) error

	// TouchLastSeen stamps the last activity time
	TouchLastSeen(ctx context.Context, id uint64, at time.Time) error

	// List retrieves users with filtering and pagination
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
}

// UserFilter holds filtering options for the admin user list
type UserFilter struct {
	Status *models.UserStatus
	Query  string
	Page   utils.PaginationParams
}

// StudyRepository defines the interface for study data access
type StudyRepository interface {
	// CreateWithOwner creates a study and its ACTIVE OWNER membership in one transaction
	CreateWithOwner(ctx context.Context, study *models.Study, owner *models.StudyMember) error

	// FindByID finds a study by ID
	FindByID(ctx context.Context, id uint64) (*models.Study, error)

	// FindByInviteCode finds a study by invite code
	FindByInviteCode(ctx context.Context, code string) (*models.Study, error)

	// Update saves a study
	Update(ctx context.Context, study *models.Study) error

	// Delete soft deletes a study and closes its open memberships
	Delete(ctx context.Context, id uint64) error

	// List retrieves studies with filtering and pagination
	List(ctx context.Context, filter StudyFilter) ([]models.Study, int64, error)
}

// StudyFilter holds filtering options for listing studies
type StudyFilter struct {
	Visibility *models.StudyVisibility
	Category   string
	Page       utils.PaginationParams
}

// MembershipRepository defines the interface for study membership data access.
// Status changes go through Transition so that concurrent requests on the
// same row cannot both succeed.
type MembershipRepository interface {
	// Create inserts a membership. A second open row for the same pair fails
	// on the open_key unique index.
	Create(ctx context.Context, member *models.StudyMember) error

	// FindByID finds a membership by ID
	FindByID(ctx context.Context, id uint64) (*models.StudyMember, error)

	// FindOpen finds the PENDING, ACTIVE or SUSPENDED membership for a pair
	FindOpen(ctx context.Context, studyID, userID uint64) (*models.StudyMember, error)

	// CountActive counts ACTIVE memberships of a study
	CountActive(ctx context.Context, studyID uint64) (int64, error)

	// ListByStudy lists memberships of a study in the given status, with users
	ListByStudy(ctx context.Context, studyID uint64, status models.MemberStatus) ([]models.StudyMember, error)

	// ListManagers lists ACTIVE OWNER and ADMIN memberships of a study
	ListManagers(ctx context.Context, studyID uint64) ([]models.StudyMember, error)

	// ListByUser lists a user's open memberships, with studies
	ListByUser(ctx context.Context, userID uint64) ([]models.StudyMember, error)

	// Transition moves a membership from one status to another with a
	// conditional UPDATE, applying extra column changes in the same statement
	Transition(ctx context.Context, id uint64, from, to models.MemberStatus, extra map[string]interface{}) error

	// ActivateWithinCapacity moves a membership from `from` to ACTIVE under
	// the study's row lock. ErrCapacityReached leaves the row untouched
	ActivateWithinCapacity(ctx context.Context, studyID, id uint64, from models.MemberStatus, extra map[string]interface{}) error

	// CreateWithinCapacity inserts an ACTIVE membership under the study's
	// row lock, failing with ErrCapacityReached when the study is full
	CreateWithinCapacity(ctx context.Context, member *models.StudyMember) error

	// ChangeRole changes the role of an ACTIVE membership that still holds fromRole
	ChangeRole(ctx context.Context, id uint64, fromRole, toRole models.MemberRole) error

	// DeletePending hard deletes a membership that is still PENDING
	DeletePending(ctx context.Context, id uint64) error
}

// NoticeRepository defines the interface for notice data access
type NoticeRepository interface {
	// Create creates a new notice
	Create(ctx context.Context, notice *models.Notice) error

	// FindByID finds a notice by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Notice, error)

	// List retrieves notices with filtering and pagination
	List(ctx context.Context, filter NoticeFilter) ([]models.Notice, int64, error)

	// SetPinned pins or unpins a notice
	SetPinned(ctx context.Context, id uint64, pinned bool) error

	// Delete soft deletes a notice
	Delete(ctx context.Context, id uint64) error
}

// NoticeFilter holds filtering options for listing notices
type NoticeFilter struct {
	StudyID    uint64
	PinnedOnly bool
	AuthorID   *uint64
	Page       utils.PaginationParams
}

// FileRepository defines the interface for shared-file metadata
type FileRepository interface {
	Create(ctx context.Context, file *models.File) error
	FindByID(ctx context.Context, id uint64) (*models.File, error)
	ListByStudy(ctx context.Context, studyID uint64, page utils.PaginationParams) ([]models.File, int64, error)
	Delete(ctx context.Context, id uint64) error
}

// MessageRepository defines the interface for chat history
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByStudy(ctx context.Context, studyID uint64, page utils.PaginationParams) ([]models.Message, int64, error)
}

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	// Create creates a new notification
	Create(ctx context.Context, n *models.Notification) error

	// FindByID finds a notification by ID
	FindByID(ctx context.Context, id uint64) (*models.Notification, error)

	// ListByRecipient lists a user's notifications, newest first
	ListByRecipient(ctx context.Context, recipientID uint64, unreadOnly bool, page utils.PaginationParams) ([]models.Notification, int64, error)

	// CountUnread counts a user's unread notifications
	CountUnread(ctx context.Context, recipientID uint64) (int64, error)

	// MarkRead flips isRead on one notification
	MarkRead(ctx context.Context, id uint64) error

	// MarkAllRead flips isRead on every unread notification of a user
	MarkAllRead(ctx context.Context, recipientID uint64) (int64, error)

	// Delete removes a notification
	Delete(ctx context.Context, id uint64) error
}

// ReportRepository defines the interface for user reports
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id uint64) (*models.Report, error)
	List(ctx context.Context, status *models.ReportStatus, page utils.PaginationParams) ([]models.Report, int64, error)

	// Close moves a PENDING report to RESOLVED or DISMISSED.
	// ErrStaleTransition means it was already closed.
	Close(ctx context.Context, id uint64, status models.ReportStatus, adminID uint64, at time.Time) error
}

// AdminLogRepository is the append-only admin log sink
type AdminLogRepository interface {
	// Append writes one entry
	Append(ctx context.Context, entry *models.AdminLog) error

	// Recent returns the most recent entries, optionally filtered
	Recent(ctx context.Context, filter AdminLogFilter) ([]models.AdminLog, error)
}

// AdminLogFilter holds filtering options for reading the admin log
type AdminLogFilter struct {
	Action     string
	TargetType models.TargetType
	AdminID    *uint64
	Limit      int
}
