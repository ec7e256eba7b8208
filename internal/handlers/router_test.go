package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coup-study/coup-api/internal/audit"
	"github.com/coup-study/coup-api/internal/authz"
	"github.com/coup-study/coup-api/internal/constants"
	"github.com/coup-study/coup-api/internal/database"
	"github.com/coup-study/coup-api/internal/dto"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/metrics"
	"github.com/coup-study/coup-api/internal/middleware"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/notify"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/services"
	"github.com/coup-study/coup-api/internal/session"
)

const testInternalKey = "internal-test-key"

type RouterTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	users    repository.UserRepository
	resolver *session.Resolver
	auth     *services.AuthService
	handlers *Handlers
	guard    *services.Guard

	// probeHits counts requests that got past RequireAuth on /probe
	probeHits int
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(":memory:")
	s.Require().NoError(err)
	s.Require().NoError(database.Migrate(db))
	s.db = db

	log := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	tokens := session.NewTokenIssuer("test-secret", "coup-api", time.Hour)

	s.users = repository.NewUserRepository(db)
	studies := repository.NewStudyRepository(db)
	members := repository.NewMembershipRepository(db)
	notifications := repository.NewNotificationRepository(db)
	reports := repository.NewReportRepository(db)
	logs := repository.NewAdminLogRepository(db)

	guard := services.NewGuard(authz.NewEngine(testInternalKey), members, m, log)
	notifier := notify.NewNotifier(notifications, nil, log, m)
	auditor := audit.NewAuditor(logs, log, m)
	membershipService := services.NewMembershipService(studies, members, guard, notifier, auditor, log)
	notificationService := services.NewNotificationService(notifications, s.users, guard, notifier)

	s.auth = services.NewAuthService(s.users, tokens)
	s.resolver = session.NewResolver(s.users, tokens, log)

	h := &Handlers{
		Auth:         NewAuthHandler(s.auth),
		Users:        NewUserHandler(services.NewUserService(s.users, guard)),
		Studies:      NewStudyHandler(services.NewStudyService(studies, members, guard, auditor, log), membershipService),
		Memberships:  NewMembershipHandler(membershipService),
		Notices:      NewNoticeHandler(services.NewNoticeService(repository.NewNoticeRepository(db), studies, members, guard, notifier, auditor)),
		Files:        NewFileHandler(services.NewFileService(repository.NewFileRepository(db), studies, members, nil, guard, notifier, log)),
		Messages:     NewMessageHandler(services.NewMessageService(repository.NewMessageRepository(db), studies, guard, nil, log)),
		Notification: NewNotificationHandler(notificationService),
		Reports:      NewReportHandler(services.NewReportService(reports)),
		Admin:        NewAdminHandler(services.NewAdminService(s.users, studies, reports, logs, guard, auditor, notifier)),
		Internal:     NewInternalHandler(membershipService, notificationService),
	}

	requireAuth := middleware.RequireAuth(s.resolver)
	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	r.Use(middleware.ClientIP())
	h.Register(r, requireAuth)
	h.RegisterInternal(r, middleware.RequireInternalKey(guard))
	s.handlers = h
	s.guard = guard

	s.probeHits = 0
	r.GET("/probe", requireAuth, func(c *gin.Context) {
		s.probeHits++
		c.Status(http.StatusOK)
	})
	s.router = r
}

func (s *RouterTestSuite) TearDownTest() {
	s.resolver.Wait()
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

// do sends a JSON request with an optional bearer token.
func (s *RouterTestSuite) do(method, path, token string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) decode(w *httptest.ResponseRecorder, out interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out))
}

// signupAndLogin creates an account through the API and returns its token.
func (s *RouterTestSuite) signupAndLogin(email string) (string, dto.UserDTO) {
	w := s.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":        email,
		"password":     "supersecret",
		"display_name": "Tester",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "supersecret",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp dto.AuthResponse
	s.decode(w, &resp)
	return resp.Token, resp.User
}

func (s *RouterTestSuite) promote(userID uint64, role models.UserRole) {
	s.Require().NoError(s.db.Model(&models.User{}).Where("id = ?", userID).Update("role", role).Error)
}

func (s *RouterTestSuite) TestSignupValidation() {
	w := s.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "a@example.com"})
	s.Equal(http.StatusBadRequest, w.Code)

	s.signupAndLogin("dup@example.com")
	w = s.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":        "dup@example.com",
		"password":     "supersecret",
		"display_name": "Again",
	})
	s.Equal(http.StatusConflict, w.Code)
}

func (s *RouterTestSuite) TestLoginWithWrongPassword() {
	s.signupAndLogin("alice@example.com")

	w := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "not-the-password",
	})
	s.Equal(http.StatusUnauthorized, w.Code)

	var body apierrors.APIError
	s.decode(w, &body)
	s.Equal(apierrors.ErrCodeInvalidCredentials, body.Code)
}

func (s *RouterTestSuite) TestSessionCookieAndBearerBothAuthenticate() {
	token, user := s.signupAndLogin("alice@example.com")

	w := s.do(http.MethodGet, "/api/auth/me", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var me dto.UserDTO
	s.decode(w, &me)
	s.Equal(user.ID, me.ID)

	login := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "supersecret",
	})
	cookies := login.Result().Cookies()
	s.Require().NotEmpty(cookies)

	w = s.do(http.MethodGet, "/api/auth/me", "", nil, cookies...)
	s.Equal(http.StatusOK, w.Code)

	logout := s.do(http.MethodPost, "/api/auth/logout", "", nil, cookies...)
	s.Require().Equal(http.StatusOK, logout.Code)
	w = s.do(http.MethodGet, "/api/auth/me", "", nil, logout.Result().Cookies()...)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestMissingOrForgedCredential() {
	w := s.do(http.MethodGet, "/probe", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/probe", "not-a-token", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	s.Zero(s.probeHits)
}

func (s *RouterTestSuite) TestSuspendedUserNeverReachesHandler() {
	adminToken, admin := s.signupAndLogin("admin@example.com")
	s.promote(admin.ID, models.UserRoleAdmin)
	token, user := s.signupAndLogin("bob@example.com")

	w := s.do(http.MethodGet, "/probe", token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().Equal(1, s.probeHits)

	w = s.do(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/status", user.ID), adminToken, map[string]string{
		"status": "SUSPENDED",
		"reason": "spam",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/probe", token, nil)
	s.Equal(http.StatusForbidden, w.Code)
	var body apierrors.APIError
	s.decode(w, &body)
	s.Equal(apierrors.ErrCodeAccountInactive, body.Code)
	s.Equal(1, s.probeHits, "suspended caller must not reach the handler")

	w = s.do(http.MethodGet, "/api/admin/logs", adminToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var logs struct {
		Logs []dto.AdminLogDTO `json:"logs"`
	}
	s.decode(w, &logs)
	s.Require().Len(logs.Logs, 1)
	s.Equal(models.ActionUserStatus, logs.Logs[0].Action)
	s.Equal(user.ID, logs.Logs[0].TargetID)
}

func (s *RouterTestSuite) TestJoinApproveFlow() {
	ownerToken, _ := s.signupAndLogin("owner@example.com")
	memberToken, _ := s.signupAndLogin("member@example.com")

	w := s.do(http.MethodPost, "/api/studies", ownerToken, map[string]interface{}{
		"name":        "Go study",
		"max_members": 5,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var study dto.StudyDTO
	s.decode(w, &study)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/studies/%d/join-requests", study.ID), memberToken, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var request dto.MembershipDTO
	s.decode(w, &request)
	s.Equal(models.MemberStatusPending, request.Status)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/studies/%d/join-requests", study.ID), memberToken, nil)
	s.Equal(http.StatusConflict, w.Code)

	// A pending member cannot see the member list or approve itself
	w = s.do(http.MethodGet, fmt.Sprintf("/api/studies/%d/members", study.ID), memberToken, nil)
	s.Equal(http.StatusForbidden, w.Code)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/memberships/%d/approve", request.ID), memberToken, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/memberships/%d/approve", request.ID), ownerToken, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, fmt.Sprintf("/api/memberships/%d/approve", request.ID), ownerToken, nil)
	s.Equal(http.StatusConflict, w.Code)
	var body apierrors.APIError
	s.decode(w, &body)
	s.Equal(apierrors.ErrCodeInvalidState, body.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/studies/%d/members", study.ID), memberToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var list struct {
		Members []dto.MembershipDTO `json:"members"`
	}
	s.decode(w, &list)
	s.Len(list.Members, 2)

	w = s.do(http.MethodGet, "/api/notifications/unread-count", memberToken, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var unread dto.UnreadCountResponse
	s.decode(w, &unread)
	s.Equal(int64(1), unread.Count)
}

func (s *RouterTestSuite) TestPrivateStudyIsHidden() {
	ownerToken, _ := s.signupAndLogin("owner@example.com")
	strangerToken, _ := s.signupAndLogin("stranger@example.com")

	w := s.do(http.MethodPost, "/api/studies", ownerToken, map[string]interface{}{
		"name":       "Secret",
		"visibility": "PRIVATE",
	})
	s.Require().Equal(http.StatusCreated, w.Code)
	var study dto.StudyDTO
	s.decode(w, &study)
	s.NotEmpty(study.InviteCode)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/studies/%d", study.ID), strangerToken, nil)
	s.Equal(http.StatusNotFound, w.Code)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/studies/%d/join-requests", study.ID), strangerToken, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/studies/join", strangerToken, map[string]string{"invite_code": study.InviteCode})
	s.Equal(http.StatusCreated, w.Code, w.Body.String())
}

func (s *RouterTestSuite) TestInternalRoutesRequireKey() {
	ownerToken, owner := s.signupAndLogin("owner@example.com")
	w := s.do(http.MethodPost, "/api/studies", ownerToken, map[string]interface{}{"name": "Go study"})
	s.Require().Equal(http.StatusCreated, w.Code)
	var study dto.StudyDTO
	s.decode(w, &study)

	path := fmt.Sprintf("/internal/studies/%d/members/%d", study.ID, owner.ID)

	// A user token is not an internal credential
	w = s.do(http.MethodGet, path, ownerToken, nil)
	s.Equal(http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(constants.HeaderInternalKey, testInternalKey)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	var check dto.MembershipCheckResponse
	s.decode(rec, &check)
	s.True(check.Member)
	s.Equal(models.MemberRoleOwner, check.Role)

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/internal/studies/%d/members/%d", study.ID, owner.ID+100), nil)
	req.Header.Set(constants.HeaderInternalKey, testInternalKey)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &check)
	s.False(check.Member)

	raw, _ := json.Marshal(map[string]interface{}{"recipient_id": owner.ID, "message": "Call started"})
	req = httptest.NewRequest(http.MethodPost, "/internal/notifications", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.HeaderInternalKey, testInternalKey)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *RouterTestSuite) TestInternalRoutesOnSeparateListener() {
	ownerToken, owner := s.signupAndLogin("owner@example.com")
	w := s.do(http.MethodPost, "/api/studies", ownerToken, map[string]interface{}{"name": "Go study"})
	s.Require().Equal(http.StatusCreated, w.Code)
	var study dto.StudyDTO
	s.decode(w, &study)

	public := gin.New()
	s.handlers.Register(public, middleware.RequireAuth(s.resolver))
	private := gin.New()
	s.handlers.RegisterInternal(private, middleware.RequireInternalKey(s.guard))

	path := fmt.Sprintf("/internal/studies/%d/members/%d", study.ID, owner.ID)
	serve := func(r *gin.Engine) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(constants.HeaderInternalKey, testInternalKey)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	s.Equal(http.StatusNotFound, serve(public), "the public router has no internal routes")
	s.Equal(http.StatusOK, serve(private))
}

func (s *RouterTestSuite) TestUploadWithoutObjectStore() {
	ownerToken, _ := s.signupAndLogin("owner@example.com")
	w := s.do(http.MethodPost, "/api/studies", ownerToken, map[string]interface{}{"name": "Go study"})
	s.Require().Equal(http.StatusCreated, w.Code)
	var study dto.StudyDTO
	s.decode(w, &study)

	// No multipart body at all
	w = s.do(http.MethodPost, fmt.Sprintf("/api/studies/%d/files", study.ID), ownerToken, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestAdminRoutesRequireGlobalRole() {
	token, _ := s.signupAndLogin("user@example.com")

	for _, path := range []string{"/api/admin/users", "/api/admin/reports", "/api/admin/logs"} {
		w := s.do(http.MethodGet, path, token, nil)
		s.Equal(http.StatusForbidden, w.Code, path)
	}

	w := s.do(http.MethodPost, "/api/reports", token, map[string]interface{}{
		"target_type": "STUDY",
		"target_id":   1,
		"reason":      "spam",
	})
	s.Equal(http.StatusCreated, w.Code, w.Body.String())
}

func (s *RouterTestSuite) TestExpiredContextMapsToTimeout() {
	token, _ := s.signupAndLogin("user@example.com")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/studies", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusGatewayTimeout, w.Code)
}
