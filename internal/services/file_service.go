package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coup-study/coup-api/internal/authz"
	"github.com/coup-study/coup-api/internal/constants"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/notify"
	"github.com/coup-study/coup-api/internal/repository"
	"github.com/coup-study/coup-api/internal/storage"
	"github.com/coup-study/coup-api/internal/utils"
)

const objectStoreName = "object storage"

// FileService handles files shared inside a study. Contents live in the
// object store and metadata in the database.
type FileService struct {
	fileRepo   repository.FileRepository
	studyRepo  repository.StudyRepository
	memberRepo repository.MembershipRepository
	store      storage.ObjectStore
	guard      *Guard
	notifier   *notify.Notifier
	log        *zap.Logger
}

// NewFileService creates a new FileService.
func NewFileService(
	fileRepo repository.FileRepository,
	studyRepo repository.StudyRepository,
	memberRepo repository.MembershipRepository,
	store storage.ObjectStore,
	guard *Guard,
	notifier *notify.Notifier,
	log *zap.Logger,
) *FileService {
	return &FileService{
		fileRepo:   fileRepo,
		studyRepo:  studyRepo,
		memberRepo: memberRepo,
		store:      store,
		guard:      guard,
		notifier:   notifier,
		log:        log.Named("files"),
	}
}

// UploadFileInput describes an uploaded file.
type UploadFileInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadFile stores the object first and then its metadata row. If the row
// cannot be written the object is removed again.
func (s *FileService) UploadFile(ctx context.Context, actor *models.User, studyID uint64, input UploadFileInput) (*models.File, error) {
	study, err := loadStudy(ctx, s.studyRepo, studyID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindStudy, StudyID: studyID}); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, apierrors.ExternalError(objectStoreName, nil)
	}

	name := path.Base(strings.ReplaceAll(strings.TrimSpace(input.Name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, invalidInput("File name is required")
	}
	if input.Size <= 0 {
		return nil, invalidInput("File is empty")
	}
	if input.Size > constants.MaxUploadSizeBytes {
		return nil, invalidInput(fmt.Sprintf("File must be at most %d MB", constants.MaxUploadSizeBytes>>20))
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("studies/%d/%s%s", studyID, uuid.NewString(), strings.ToLower(filepath.Ext(name)))
	if err := s.store.Put(ctx, key, contentType, input.Body, input.Size); err != nil {
		return nil, apierrors.ExternalError(objectStoreName, err)
	}

	file := &models.File{
		StudyID:     studyID,
		UploaderID:  actor.ID,
		Name:        name,
		ObjectKey:   key,
		ContentType: contentType,
		Size:        input.Size,
	}
	if err := s.fileRepo.Create(ctx, file); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.log.Warn("failed to remove orphaned object", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	if recipients, err := activeMemberIDs(ctx, s.memberRepo, studyID, actor.ID); err == nil {
		s.notifier.NotifyMany(ctx, recipients, models.NotificationNewFile,
			fmt.Sprintf("%s shared %s in %s", actor.DisplayName, file.Name, study.Name),
			fmt.Sprintf("/studies/%d/files", studyID))
	}

	return file, nil
}

// ListFiles lists a study's files, newest first.
func (s *FileService) ListFiles(ctx context.Context, actor *models.User, studyID uint64, page utils.PaginationParams) ([]models.File, int64, error) {
	if _, err := loadStudy(ctx, s.studyRepo, studyID); err != nil {
		return nil, 0, err
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindStudy, StudyID: studyID}); err != nil {
		return nil, 0, err
	}

	files, total, err := s.fileRepo.ListByStudy(ctx, studyID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list files: %w", err)
	}
	return files, total, nil
}

// DownloadURL returns a short-lived presigned link to the file's contents.
func (s *FileService) DownloadURL(ctx context.Context, actor *models.User, fileID uint64) (string, error) {
	file, err := s.findFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindFile, StudyID: file.StudyID}); err != nil {
		return "", err
	}
	if s.store == nil {
		return "", apierrors.ExternalError(objectStoreName, nil)
	}

	url, err := s.store.PresignGet(ctx, file.ObjectKey, file.Name, constants.PresignExpiry)
	if err != nil {
		return "", apierrors.ExternalError(objectStoreName, err)
	}
	return url, nil
}

// DeleteFile removes the object and then its metadata. Only the uploader
// and the study's OWNER or ADMIN may delete.
func (s *FileService) DeleteFile(ctx context.Context, actor *models.User, fileID uint64) error {
	file, err := s.findFile(ctx, fileID)
	if err != nil {
		return err
	}
	if _, err := s.guard.Check(ctx, actor, authz.CapFileDelete, authz.Resource{
		Kind:    authz.KindFile,
		StudyID: file.StudyID,
		OwnerID: file.UploaderID,
	}); err != nil {
		return err
	}
	if s.store == nil {
		return apierrors.ExternalError(objectStoreName, nil)
	}

	if err := s.store.Delete(ctx, file.ObjectKey); err != nil {
		return apierrors.ExternalError(objectStoreName, err)
	}
	if err := s.fileRepo.Delete(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *FileService) findFile(ctx context.Context, id uint64) (*models.File, error) {
	file, err := s.fileRepo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	return file, nil
}
