package handlers

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Studies      *StudyHandler
	Memberships  *MembershipHandler
	Notices      *NoticeHandler
	Files        *FileHandler
	Messages     *MessageHandler
	Notification *NotificationHandler
	Reports      *ReportHandler
	Admin        *AdminHandler
	Internal     *InternalHandler
}

// Register mounts the public API under /api.
func (h *Handlers) Register(r gin.IRouter, requireAuth gin.HandlerFunc) {
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.Auth.Signup)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", requireAuth, h.Auth.GetCurrentUser)
		}

		users := api.Group("/users", requireAuth)
		{
			users.PATCH("/me", h.Users.UpdateMe)
			users.GET("/:id", h.Users.GetUser)
		}

		studies := api.Group("/studies", requireAuth)
		{
			studies.POST("", h.Studies.CreateStudy)
			studies.GET("", h.Studies.ListStudies)
			studies.GET("/mine", h.Studies.ListMyStudies)
			studies.POST("/join", h.Studies.JoinByInviteCode)
			studies.GET("/:id", h.Studies.GetStudy)
			studies.PATCH("/:id", h.Studies.UpdateStudy)
			studies.GET("/:id/invite-code", h.Studies.GetInviteCode)
			studies.POST("/:id/invite-code", h.Studies.RegenerateInviteCode)

			studies.POST("/:id/join-requests", h.Memberships.RequestJoin)
			studies.GET("/:id/join-requests", h.Memberships.ListJoinRequests)
			studies.GET("/:id/members", h.Memberships.ListMembers)

			studies.POST("/:id/notices", h.Notices.CreateNotice)
			studies.GET("/:id/notices", h.Notices.ListNotices)
			studies.POST("/:id/files", h.Files.UploadFile)
			studies.GET("/:id/files", h.Files.ListFiles)
			studies.POST("/:id/messages", h.Messages.PostMessage)
			studies.GET("/:id/messages", h.Messages.ListMessages)
		}

		memberships := api.Group("/memberships", requireAuth)
		{
			memberships.POST("/:id/approve", h.Memberships.Approve)
			memberships.POST("/:id/reject", h.Memberships.Reject)
			memberships.POST("/:id/suspend", h.Memberships.Suspend)
			memberships.POST("/:id/reinstate", h.Memberships.Reinstate)
			memberships.PATCH("/:id/role", h.Memberships.ChangeRole)
			memberships.DELETE("/:id", h.Memberships.Remove)
		}

		notices := api.Group("/notices", requireAuth)
		{
			notices.GET("/:id", h.Notices.GetNotice)
			notices.PATCH("/:id/pin", h.Notices.SetPinned)
			notices.DELETE("/:id", h.Notices.DeleteNotice)
		}

		files := api.Group("/files", requireAuth)
		{
			files.GET("/:id/download", h.Files.GetDownloadURL)
			files.DELETE("/:id", h.Files.DeleteFile)
		}

		notifications := api.Group("/notifications", requireAuth)
		{
			notifications.GET("", h.Notification.ListNotifications)
			notifications.GET("/unread-count", h.Notification.UnreadCount)
			notifications.POST("/read-all", h.Notification.MarkAllRead)
			notifications.POST("/:id/read", h.Notification.MarkRead)
			notifications.DELETE("/:id", h.Notification.DeleteNotification)
		}

		api.POST("/reports", requireAuth, h.Reports.CreateReport)

		admin := api.Group("/admin", requireAuth)
		{
			admin.GET("/users", h.Admin.ListUsers)
			admin.PATCH("/users/:id/status", h.Admin.SetUserStatus)
			admin.DELETE("/studies/:id", h.Admin.DeleteStudy)
			admin.GET("/reports", h.Admin.ListReports)
			admin.PATCH("/reports/:id", h.Admin.CloseReport)
			admin.GET("/logs", h.Admin.ListLogs)
		}
	}
}

// RegisterInternal mounts the service-to-service routes under /internal.
// The server puts them on their own listener when INTERNAL_HTTP_ADDR is set.
func (h *Handlers) RegisterInternal(r gin.IRouter, requireInternalKey gin.HandlerFunc) {
	internal := r.Group("/internal", requireInternalKey)
	{
		internal.GET("/studies/:id/members/:userId", h.Internal.CheckMembership)
		internal.POST("/notifications", h.Internal.CreateNotification)
	}
}
