package controller

import (
	"context"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"gradehub/internal/submission/model"
	"gradehub/internal/submission/service"
	appErr "gradehub/pkg/errors"
	"gradehub/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const defaultMaxFileBytes = 1 << 20 // 1MB

// SubmissionService is the service surface the controller needs.
type SubmissionService interface {
	Submit(ctx context.Context, input service.SubmitInput) (string, error)
	GetStatus(ctx context.Context, submissionID string) (model.StatusProjection, error)
}

// SubmissionController handles the submission HTTP endpoints.
type SubmissionController struct {
	service      SubmissionService
	maxFileBytes int64
}

// NewSubmissionController creates a submission controller. maxFileBytes
// limits uploaded files; zero selects the 1MB default.
func NewSubmissionController(svc SubmissionService, maxFileBytes int64) *SubmissionController {
	if maxFileBytes <= 0 {
		maxFileBytes = defaultMaxFileBytes
	}
	return &SubmissionController{service: svc, maxFileBytes: maxFileBytes}
}

// RegisterRoutes registers the submission endpoints on the router group.
func (ctrl *SubmissionController) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/submissions", ctrl.Create)
	api.GET("/submissions/:id", ctrl.GetStatus)
	api.GET("/healthz", ctrl.Health)
}

type createRequest struct {
	StudentID    string `json:"studentId" form:"studentId"`
	AssignmentID string `json:"assignmentId" form:"assignmentId"`
	Content      string `json:"content" form:"content"`
}

type createResponse struct {
	SubmissionID string `json:"submissionId"`
	Message      string `json:"message"`
}

// Create accepts a new submission as JSON or multipart form data. A file
// part named "file" replaces the content field when present.
func (ctrl *SubmissionController) Create(c *gin.Context) {
	var req createRequest
	var upload *service.UploadFile

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&req); err != nil {
			response.BadRequest(c, "invalid form data")
			return
		}
		fileHeader, err := c.FormFile("file")
		if err == nil {
			upload, err = ctrl.readUpload(fileHeader)
			if err != nil {
				response.Error(c, err)
				return
			}
			req.Content = string(upload.Data)
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}

	submissionID, err := ctrl.service.Submit(c.Request.Context(), service.SubmitInput{
		StudentID:    req.StudentID,
		AssignmentID: req.AssignmentID,
		Content:      req.Content,
		Upload:       upload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, createResponse{
		SubmissionID: submissionID,
		Message:      "Submission received and queued for grading",
	})
}

// GetStatus returns the current status projection of a submission.
func (ctrl *SubmissionController) GetStatus(c *gin.Context) {
	proj, err := ctrl.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, proj)
}

// Health reports service liveness.
func (ctrl *SubmissionController) Health(c *gin.Context) {
	response.OK(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (ctrl *SubmissionController) readUpload(fh *multipart.FileHeader) (*service.UploadFile, error) {
	if !allowedUploadType(fh) {
		return nil, appErr.New(appErr.UploadTypeNotAllowed)
	}
	if fh.Size > ctrl.maxFileBytes {
		return nil, appErr.New(appErr.FileTooLarge).
			WithDetail("max_bytes", ctrl.maxFileBytes).
			WithDetail("got_bytes", fh.Size)
	}

	file, err := fh.Open()
	if err != nil {
		return nil, appErr.Wrap(err, appErr.InvalidParams)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, ctrl.maxFileBytes+1))
	if err != nil {
		return nil, appErr.Wrap(err, appErr.InternalServerError)
	}
	if int64(len(data)) > ctrl.maxFileBytes {
		return nil, appErr.New(appErr.FileTooLarge)
	}

	return &service.UploadFile{
		Filename:    filepath.Base(fh.Filename),
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func allowedUploadType(fh *multipart.FileHeader) bool {
	switch fh.Header.Get("Content-Type") {
	case "text/plain", "text/markdown":
		return true
	}
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".txt", ".md":
		return true
	}
	return false
}
