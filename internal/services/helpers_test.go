package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coup-study/coup-api/internal/audit"
	"github.com/coup-study/coup-api/internal/authz"
	"github.com/coup-study/coup-api/internal/database"
	"github.com/coup-study/coup-api/internal/metrics"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/notify"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/utils"
)

const testInternalKey = "internal-test-key"

// testEnv wires every service against one in-memory database.
type testEnv struct {
	db      *gorm.DB
	metrics *metrics.Metrics

	users         repository.UserRepository
	studies       repository.StudyRepository
	members       repository.MembershipRepository
	notices       repository.NoticeRepository
	files         repository.FileRepository
	messages      repository.MessageRepository
	notifications repository.NotificationRepository
	reports       repository.ReportRepository
	logs          repository.AdminLogRepository

	guard    *Guard
	notifier *notify.Notifier
	auditor  *audit.Auditor

	studySvc        *StudyService
	membershipSvc   *MembershipService
	noticeSvc       *NoticeService
	notificationSvc *NotificationService
	adminSvc        *AdminService
}

func setupServiceTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := zap.NewNop()
	env := &testEnv{
		db:            db,
		metrics:       metrics.New(prometheus.NewRegistry()),
		users:         repository.NewUserRepository(db),
		studies:       repository.NewStudyRepository(db),
		members:       repository.NewMembershipRepository(db),
		notices:       repository.NewNoticeRepository(db),
		files:         repository.NewFileRepository(db),
		messages:      repository.NewMessageRepository(db),
		notifications: repository.NewNotificationRepository(db),
		reports:       repository.NewReportRepository(db),
		logs:          repository.NewAdminLogRepository(db),
	}

	env.guard = NewGuard(authz.NewEngine(testInternalKey), env.members, env.metrics, log)
	env.notifier = notify.NewNotifier(env.notifications, nil, log, env.metrics)
	env.auditor = audit.NewAuditor(env.logs, log, env.metrics)

	env.studySvc = NewStudyService(env.studies, env.members, env.guard, env.auditor, log)
	env.membershipSvc = NewMembershipService(env.studies, env.members, env.guard, env.notifier, env.auditor, log)
	env.noticeSvc = NewNoticeService(env.notices, env.studies, env.members, env.guard, env.notifier, env.auditor)
	env.notificationSvc = NewNotificationService(env.notifications, env.users, env.guard, env.notifier)
	env.adminSvc = NewAdminService(env.users, env.studies, env.reports, env.logs, env.guard, env.auditor, env.notifier)

	return env
}

func (e *testEnv) createUser(t *testing.T, email string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		DisplayName:  email,
		PasswordHash: "hashedpassword",
		Role:         role,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) createStudy(t *testing.T, owner *models.User, input CreateStudyInput) *models.Study {
	t.Helper()
	if input.Name == "" {
		input.Name = "Go study"
	}
	study, err := e.studySvc.CreateStudy(context.Background(), owner, input)
	require.NoError(t, err)
	return study
}

// addActiveMember inserts an ACTIVE membership directly.
func (e *testEnv) addActiveMember(t *testing.T, studyID uint64, user *models.User, role models.MemberRole) *models.StudyMember {
	t.Helper()
	member := &models.StudyMember{
		StudyID: studyID,
		UserID:  user.ID,
		Role:    role,
		Status:  models.MemberStatusActive,
	}
	require.NoError(t, e.members.Create(context.Background(), member))
	return member
}

func (e *testEnv) adminLogCount(t *testing.T) int {
	t.Helper()
	entries, err := e.logs.Recent(context.Background(), repository.AdminLogFilter{Limit: 200})
	require.NoError(t, err)
	return len(entries)
}

func (e *testEnv) countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func firstPage() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20}
}

func repositoryFilter(action string) repository.AdminLogFilter {
	return repository.AdminLogFilter{Action: action}
}
