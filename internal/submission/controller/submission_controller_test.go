package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"gradehub/internal/submission/controller"
	"gradehub/internal/submission/model"
	"gradehub/internal/submission/service"
	appErr "gradehub/pkg/errors"

	"github.com/gin-gonic/gin"
)

type stubService struct {
	submitID  string
	submitErr error
	lastInput service.SubmitInput

	status    model.StatusProjection
	statusErr error
	lastID    string
}

func (s *stubService) Submit(ctx context.Context, input service.SubmitInput) (string, error) {
	s.lastInput = input
	return s.submitID, s.submitErr
}

func (s *stubService) GetStatus(ctx context.Context, submissionID string) (model.StatusProjection, error) {
	s.lastID = submissionID
	return s.status, s.statusErr
}

func newTestRouter(svc controller.SubmissionService, maxFileBytes int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	ctrl := controller.NewSubmissionController(svc, maxFileBytes)
	ctrl.RegisterRoutes(router.Group("/api"))
	return router
}

func TestCreateSubmissionJSON(t *testing.T) {
	svc := &stubService{submitID: "sub-123"}
	router := newTestRouter(svc, 0)

	body := `{"studentId":"s-1","assignmentId":"a-1","content":"my essay"}`
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		SubmissionID string `json:"submissionId"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.SubmissionID != "sub-123" {
		t.Fatalf("expected submission id sub-123, got %q", resp.SubmissionID)
	}
	if resp.Message != "Submission received and queued for grading" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if svc.lastInput.StudentID != "s-1" || svc.lastInput.Content != "my essay" {
		t.Fatalf("service received wrong input: %+v", svc.lastInput)
	}
}

func TestCreateSubmissionValidationError(t *testing.T) {
	svc := &stubService{submitErr: appErr.ValidationError("content", "cannot be empty")}
	router := newTestRouter(svc, 0)

	body := `{"studentId":"s-1","assignmentId":"a-1","content":""}`
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Error != "content cannot be empty" {
		t.Fatalf("unexpected error message %q", resp.Error)
	}
}

func multipartBody(t *testing.T, fields map[string]string, filename, contentType, fileData string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field failed: %v", err)
		}
	}
	if filename != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part failed: %v", err)
		}
		if _, err := part.Write([]byte(fileData)); err != nil {
			t.Fatalf("write file failed: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer failed: %v", err)
	}
	return buf, writer.FormDataContentType()
}

func TestCreateSubmissionWithFileUpload(t *testing.T) {
	svc := &stubService{submitID: "sub-456"}
	router := newTestRouter(svc, 0)

	fields := map[string]string{"studentId": "s-1", "assignmentId": "a-1"}
	buf, contentType := multipartBody(t, fields, "essay.txt", "text/plain", "file content here")
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastInput.Content != "file content here" {
		t.Fatalf("file content not used as submission content: %q", svc.lastInput.Content)
	}
	if svc.lastInput.Upload == nil || svc.lastInput.Upload.Filename != "essay.txt" {
		t.Fatalf("upload not passed through: %+v", svc.lastInput.Upload)
	}
}

func TestCreateSubmissionRejectsUploadType(t *testing.T) {
	svc := &stubService{submitID: "sub-789"}
	router := newTestRouter(svc, 0)

	fields := map[string]string{"studentId": "s-1", "assignmentId": "a-1"}
	buf, contentType := multipartBody(t, fields, "payload.exe", "application/octet-stream", "binary")
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if resp.Error != "Only .txt and .md files are allowed" {
		t.Fatalf("unexpected error message %q", resp.Error)
	}
}

func TestCreateSubmissionRejectsOversizedFile(t *testing.T) {
	svc := &stubService{submitID: "sub-1"}
	router := newTestRouter(svc, 16)

	fields := map[string]string{"studentId": "s-1", "assignmentId": "a-1"}
	buf, contentType := multipartBody(t, fields, "essay.txt", "text/plain", strings.Repeat("x", 64))
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetStatusProjectionShape(t *testing.T) {
	score := 80
	now := time.Now().UTC().Truncate(time.Second)
	svc := &stubService{status: model.StatusProjection{
		SubmissionID: "sub-1",
		StudentID:    "s-1",
		AssignmentID: "a-1",
		Status:       model.StatusCompleted,
		SubmittedAt:  now,
		Score:        &score,
		Feedback:     "Good length and detail. Well done!",
		CompletedAt:  &now,
	}}
	router := newTestRouter(svc, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/submissions/sub-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastID != "sub-1" {
		t.Fatalf("service queried wrong id %q", svc.lastID)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	for _, key := range []string{"submissionId", "studentId", "assignmentId", "status", "submittedAt", "score", "feedback", "completedAt"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing field %q in %v", key, body)
		}
	}
}

func TestGetStatusOmitsResultFieldsWhileQueued(t *testing.T) {
	svc := &stubService{status: model.StatusProjection{
		SubmissionID: "sub-2",
		StudentID:    "s-1",
		AssignmentID: "a-1",
		Status:       model.StatusQueued,
		SubmittedAt:  time.Now().UTC(),
	}}
	router := newTestRouter(svc, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/submissions/sub-2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	for _, key := range []string{"score", "feedback", "completedAt"} {
		if _, ok := body[key]; ok {
			t.Fatalf("queued projection leaked %q: %v", key, body)
		}
	}
}

func TestGetStatusNotFound(t *testing.T) {
	svc := &stubService{statusErr: appErr.New(appErr.SubmissionNotFound)}
	router := newTestRouter(svc, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/submissions/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&stubService{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if body.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", body.Status)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %v", err)
	}
}
