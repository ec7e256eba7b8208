package constants

import "time"

const (
	// Session
	SessionCookieName = "coup_session"
	SessionTokenKey   = "token"
	SessionMaxAge     = 86400 * 7

	// Context keys
	ContextKeyUserID    = "user_id"
	ContextKeyUser      = "current_user"
	ContextKeyRequestID = "request_id"

	// Headers
	HeaderInternalKey = "X-Internal-Key"
	HeaderRequestID   = "X-Request-ID"

	// Validation
	MinPasswordLength   = 8
	MaxDisplayNameLen   = 50
	MaxStudyNameLen     = 100
	MaxJoinMessageLen   = 500
	MaxNoticeTitleLen   = 200
	MaxChatMessageLen   = 2000
	MaxUploadSizeBytes  = 20 << 20
	MaxAdminLogPageSize = 200

	// Pagination
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// Background work detached from a request
	LastSeenTimeout   = 3 * time.Second
	PresignExpiry     = 15 * time.Minute
	NotifyConcurrency = 8
)
