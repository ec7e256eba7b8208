package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coup-study/coup-api/internal/constants"
	"github.com/coup-study/coup-api/internal/dto"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/services"
	"github.com/coup-study/coup-api/internal/utils"
)

// multipartOverhead leaves room for the form framing around the file part.
const multipartOverhead = 1 << 20

type FileHandler struct {
	fileService *services.FileService
}

func NewFileHandler(fileService *services.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// UploadFile stores the multipart "file" field in the study's file space
func (h *FileHandler) UploadFile(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, constants.MaxUploadSizeBytes+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		apierrors.BadRequest(c, fmt.Sprintf("A file of at most %d MB is required", constants.MaxUploadSizeBytes>>20))
		return
	}

	body, err := header.Open()
	if err != nil {
		apierrors.BadRequest(c, "Failed to read upload")
		return
	}
	defer body.Close()

	file, err := h.fileService.UploadFile(c.Request.Context(), actor, studyID, services.UploadFileInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        body,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToFileDTO(*file))
}

func (h *FileHandler) ListFiles(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	studyID, ok := idParam(c, "id")
	if !ok {
		return
	}
	page := utils.GetPaginationParams(c)

	files, total, err := h.fileService.ListFiles(c.Request.Context(), actor, studyID, page)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FileListResponse{
		Files:      dto.ToFileDTOs(files),
		Pagination: dto.NewPage(page, total),
	})
}

// GetDownloadURL returns a presigned link to the object
func (h *FileHandler) GetDownloadURL(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	url, err := h.fileService.DownloadURL(c.Request.Context(), actor, id)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DownloadURLResponse{
		URL:       url,
		ExpiresAt: time.Now().Add(constants.PresignExpiry).UTC(),
	})
}

func (h *FileHandler) DeleteFile(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.fileService.DeleteFile(c.Request.Context(), actor, id); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
