package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) PresignGet(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://files.example.com/" + key, nil
}

type recordingChat struct {
	mu   sync.Mutex
	sent []string
}

func (p *recordingChat) PublishNotification(context.Context, *models.Notification) error { return nil }

func (p *recordingChat) PublishChat(_ context.Context, m *models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, m.Content)
	return nil
}

func TestNotices_ManageAndView(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", models.UserRoleUser)
	member := env.createUser(t, "member@example.com", models.UserRoleUser)
	outsider := env.createUser(t, "outsider@example.com", models.UserRoleUser)
	study := env.createStudy(t, owner, CreateStudyInput{})
	env.addActiveMember(t, study.ID, member, models.MemberRoleMember)

	_, err := env.noticeSvc.CreateNotice(ctx, member, study.ID, CreateNoticeInput{Title: "hi"})
	e, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindNotAuthorized, e.Kind)

	first, err := env.noticeSvc.CreateNotice(ctx, owner, study.ID, CreateNoticeInput{
		Title:   "Week 1",
		Content: `<p>Read chapter 1</p><script>alert(1)</script>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>Read chapter 1</p>", first.Content)

	pinned, err := env.noticeSvc.CreateNotice(ctx, owner, study.ID, CreateNoticeInput{Title: "Rules"})
	require.NoError(t, err)
	_, err = env.noticeSvc.SetPinned(ctx, owner, pinned.ID, true)
	require.NoError(t, err)

	// The member was notified of both notices, the author of none
	count, err := env.notifications.CountUnread(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	count, err = env.notifications.CountUnread(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	notices, total, err := env.noticeSvc.ListNotices(ctx, member, study.ID, false, firstPage())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, notices, 2)
	assert.Equal(t, "Rules", notices[0].Title, "pinned first")

	_, _, err = env.noticeSvc.ListNotices(ctx, outsider, study.ID, false, firstPage())
	assert.Error(t, err)

	err = env.noticeSvc.DeleteNotice(ctx, member, first.ID)
	assert.Error(t, err)
	require.NoError(t, env.noticeSvc.DeleteNotice(ctx, owner, first.ID))

	_, err = env.noticeSvc.GetNotice(ctx, member, first.ID)
	assert.ErrorIs(t, err, ErrNoticeNotFound)
}

func TestFiles_UploadDownloadDelete(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()
	store := newMemoryStore()
	svc := NewFileService(env.files, env.studies, env.members, store, env.guard, env.notifier, zap.NewNop())

	owner := env.createUser(t, "owner@example.com", models.UserRoleUser)
	uploader := env.createUser(t, "uploader@example.com", models.UserRoleUser)
	other := env.createUser(t, "other@example.com", models.UserRoleUser)
	platformAdmin := env.createUser(t, "root@example.com", models.UserRoleAdmin)
	study := env.createStudy(t, owner, CreateStudyInput{})
	env.addActiveMember(t, study.ID, uploader, models.MemberRoleMember)
	env.addActiveMember(t, study.ID, other, models.MemberRoleMember)

	body := []byte("hello world")
	file, err := svc.UploadFile(ctx, uploader, study.ID, UploadFileInput{
		Name:        "../notes.PDF",
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Body:        bytes.NewReader(body),
	})
	require.NoError(t, err)
	assert.Equal(t, "notes.PDF", file.Name)
	assert.True(t, strings.HasPrefix(file.ObjectKey, "studies/"))
	assert.True(t, strings.HasSuffix(file.ObjectKey, ".pdf"))
	assert.Equal(t, body, store.objects[file.ObjectKey])

	url, err := svc.DownloadURL(ctx, other, file.ID)
	require.NoError(t, err)
	assert.Contains(t, url, file.ObjectKey)

	// Neither a plain member nor a platform admin outside the study may delete
	for _, actor := range []*models.User{other, platformAdmin} {
		err = svc.DeleteFile(ctx, actor, file.ID)
		e, ok := apierrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apierrors.KindNotAuthorized, e.Kind)
	}

	store.deleteErr = errors.New("bucket unavailable")
	err = svc.DeleteFile(ctx, uploader, file.ID)
	e, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindExternal, e.Kind)
	assert.NotContains(t, e.Message, "bucket unavailable")

	store.deleteErr = nil
	require.NoError(t, svc.DeleteFile(ctx, owner, file.ID))
	assert.Empty(t, store.objects)

	_, err = svc.DownloadURL(ctx, other, file.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestFiles_UploadValidation(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com", models.UserRoleUser)
	study := env.createStudy(t, owner, CreateStudyInput{})

	svc := NewFileService(env.files, env.studies, env.members, newMemoryStore(), env.guard, env.notifier, zap.NewNop())
	_, err := svc.UploadFile(ctx, owner, study.ID, UploadFileInput{Name: "big.bin", Size: 1 << 30, Body: strings.NewReader("")})
	e, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindInvalidInput, e.Kind)

	noStore := NewFileService(env.files, env.studies, env.members, nil, env.guard, env.notifier, zap.NewNop())
	_, err = noStore.UploadFile(ctx, owner, study.ID, UploadFileInput{Name: "a.txt", Size: 1, Body: strings.NewReader("a")})
	e, ok = apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindExternal, e.Kind)
}

func TestMessages_PostAndList(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()
	pub := &recordingChat{}
	svc := NewMessageService(env.messages, env.studies, env.guard, pub, zap.NewNop())

	owner := env.createUser(t, "owner@example.com", models.UserRoleUser)
	outsider := env.createUser(t, "outsider@example.com", models.UserRoleUser)
	study := env.createStudy(t, owner, CreateStudyInput{})

	msg, err := svc.PostMessage(ctx, owner, study.ID, "<i>hello</i> & welcome")
	require.NoError(t, err)
	assert.Equal(t, "hello & welcome", msg.Content)
	assert.Equal(t, []string{"hello & welcome"}, pub.sent)

	_, err = svc.PostMessage(ctx, owner, study.ID, "   ")
	assert.Error(t, err)

	_, err = svc.PostMessage(ctx, outsider, study.ID, "hi")
	assert.Error(t, err)

	list, total, err := svc.ListMessages(ctx, owner, study.ID, firstPage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
}

func TestNotifications_RecipientOnly(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "alice@example.com", models.UserRoleUser)
	bob := env.createUser(t, "bob@example.com", models.UserRoleAdmin)

	n, err := env.notificationSvc.CreateForService(ctx, alice.ID, "", "Call started", "/studies/1/call")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSystem, n.Type)

	_, err = env.notificationSvc.CreateForService(ctx, 9999, "", "x", "")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Not even a platform admin reads another user's notifications
	err = env.notificationSvc.MarkRead(ctx, bob, n.ID)
	e, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindNotAuthorized, e.Kind)

	require.NoError(t, env.notificationSvc.MarkRead(ctx, alice, n.ID))
	unread, err := env.notificationSvc.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, unread)

	require.NoError(t, env.notificationSvc.DeleteNotification(ctx, alice, n.ID))
	err = env.notificationSvc.DeleteNotification(ctx, alice, n.ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}
