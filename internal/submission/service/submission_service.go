package service

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"gradehub/internal/common/storage"
	"gradehub/internal/submission/model"
	"gradehub/internal/submission/repository"
	appErr "gradehub/pkg/errors"
	"gradehub/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxContentChars = 10000
	defaultGradingDelayMin = 1 * time.Second
	defaultGradingDelayMax = 3 * time.Second
	defaultDBTimeout       = 5 * time.Second
)

// UploadFile is an optional file attached to a submission.
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmitInput carries the fields of a new submission.
type SubmitInput struct {
	StudentID    string
	AssignmentID string
	Content      string
	Upload       *UploadFile
}

// Config configures the submission service.
type Config struct {
	SubmissionRepo repository.SubmissionRepository

	// Storage archives raw uploads when set. Archival is best effort and
	// never blocks grading.
	Storage          storage.ObjectStorage
	ArchiveBucket    string
	ArchiveKeyPrefix string

	MaxContentChars int
	GradingDelayMin time.Duration
	GradingDelayMax time.Duration
	DBTimeout       time.Duration
}

// SubmissionService accepts submissions, grades them asynchronously and
// serves status queries.
type SubmissionService struct {
	repo             repository.SubmissionRepository
	storage          storage.ObjectStorage
	archiveBucket    string
	archiveKeyPrefix string
	maxContentChars  int
	delayMin         time.Duration
	delayMax         time.Duration
	dbTimeout        time.Duration
}

// NewSubmissionService creates a submission service, filling unset limits
// and delays with defaults.
func NewSubmissionService(cfg Config) *SubmissionService {
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = defaultMaxContentChars
	}
	if cfg.GradingDelayMin <= 0 {
		cfg.GradingDelayMin = defaultGradingDelayMin
	}
	if cfg.GradingDelayMax < cfg.GradingDelayMin {
		cfg.GradingDelayMax = cfg.GradingDelayMin
	}
	if cfg.DBTimeout <= 0 {
		cfg.DBTimeout = defaultDBTimeout
	}
	return &SubmissionService{
		repo:             cfg.SubmissionRepo,
		storage:          cfg.Storage,
		archiveBucket:    cfg.ArchiveBucket,
		archiveKeyPrefix: cfg.ArchiveKeyPrefix,
		maxContentChars:  cfg.MaxContentChars,
		delayMin:         cfg.GradingDelayMin,
		delayMax:         cfg.GradingDelayMax,
		dbTimeout:        cfg.DBTimeout,
	}
}

// Submit validates the input, records the submission as queued and kicks
// off grading in the background. It returns the new submission id without
// waiting for grading.
func (s *SubmissionService) Submit(ctx context.Context, input SubmitInput) (string, error) {
	if err := s.validateInput(input); err != nil {
		return "", err
	}

	sub := &model.Submission{
		SubmissionID: uuid.NewString(),
		StudentID:    strings.TrimSpace(input.StudentID),
		AssignmentID: strings.TrimSpace(input.AssignmentID),
		Content:      strings.TrimSpace(input.Content),
		Status:       model.StatusQueued,
		SubmittedAt:  time.Now().UTC(),
	}

	if input.Upload != nil {
		s.archiveUpload(ctx, sub.SubmissionID, input.Upload)
	}

	createCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repo.Create(createCtx, nil, sub); err != nil {
		logger.Error(ctx, "failed to create submission",
			zap.String("student_id", input.StudentID),
			zap.String("assignment_id", input.AssignmentID),
			zap.Error(err))
		return "", appErr.Wrap(err, appErr.SubmissionCreateFailed)
	}

	logger.Info(ctx, "submission queued",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("student_id", sub.StudentID),
		zap.String("assignment_id", sub.AssignmentID))

	// Grading outlives the request. WithoutCancel keeps trace fields for
	// logging while detaching from the request's cancellation.
	go s.process(context.WithoutCancel(ctx), sub.SubmissionID)

	return sub.SubmissionID, nil
}

// GetStatus returns the status projection for a submission.
func (s *SubmissionService) GetStatus(ctx context.Context, submissionID string) (model.StatusProjection, error) {
	if submissionID == "" {
		return model.StatusProjection{}, appErr.ValidationError("submission id", "is required")
	}

	queryCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	sub, err := s.repo.FindByID(queryCtx, submissionID)
	if err != nil {
		if err == repository.ErrSubmissionNotFound {
			return model.StatusProjection{}, appErr.New(appErr.SubmissionNotFound)
		}
		return model.StatusProjection{}, appErr.Wrap(err, appErr.DatabaseError)
	}
	return model.ProjectionOf(sub), nil
}

func (s *SubmissionService) validateInput(input SubmitInput) error {
	if strings.TrimSpace(input.StudentID) == "" {
		return appErr.ValidationError("student id", "is required")
	}
	if strings.TrimSpace(input.AssignmentID) == "" {
		return appErr.ValidationError("assignment id", "is required")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return appErr.ValidationError("content", "cannot be empty")
	}
	// The bound counts characters, not bytes.
	if got := utf8.RuneCountInString(content); got > s.maxContentChars {
		return appErr.New(appErr.ContentTooLarge).
			WithDetail("max_chars", s.maxContentChars).
			WithDetail("got_chars", got)
	}
	return nil
}

// archiveUpload stores the raw upload in object storage. Failures are
// logged and swallowed so an unavailable archive never rejects work.
func (s *SubmissionService) archiveUpload(ctx context.Context, submissionID string, upload *UploadFile) {
	if s.storage == nil || s.archiveBucket == "" {
		return
	}
	key := fmt.Sprintf("%s%s/%s", s.archiveKeyPrefix, submissionID, upload.Filename)
	err := s.storage.PutObject(ctx, s.archiveBucket, key,
		bytes.NewReader(upload.Data), int64(len(upload.Data)), upload.ContentType)
	if err != nil {
		logger.Warn(ctx, "failed to archive upload",
			zap.String("submission_id", submissionID),
			zap.String("object_key", key),
			zap.Error(err))
		return
	}
	logger.Debug(ctx, "upload archived",
		zap.String("submission_id", submissionID),
		zap.String("object_key", key))
}

// process drives one submission through grading. Any error marks the
// submission failed; the record never sticks in a non-terminal state
// while the service is up.
func (s *SubmissionService) process(ctx context.Context, submissionID string) {
	if err := s.runGrading(ctx, submissionID); err != nil {
		logger.Error(ctx, "grading failed",
			zap.String("submission_id", submissionID),
			zap.Error(err))
		s.markFailed(ctx, submissionID)
	}
}

func (s *SubmissionService) runGrading(ctx context.Context, submissionID string) error {
	if err := s.transition(ctx, submissionID, repository.StatusUpdate{
		From: model.StatusQueued,
		To:   model.StatusRunning,
	}); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	// Simulated evaluation latency.
	select {
	case <-time.After(s.gradingDelay()):
	case <-ctx.Done():
		return ctx.Err()
	}

	findCtx, cancel := s.withTimeout(ctx)
	sub, err := s.repo.FindByID(findCtx, submissionID)
	cancel()
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}

	score, feedback := GradeSubmission(sub.Content)
	now := time.Now().UTC()
	if err := s.transition(ctx, submissionID, repository.StatusUpdate{
		From:        model.StatusRunning,
		To:          model.StatusCompleted,
		Score:       &score,
		Feedback:    &feedback,
		CompletedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	logger.Info(ctx, "submission graded",
		zap.String("submission_id", submissionID),
		zap.Int("score", score))
	return nil
}

// markFailed records the failure terminal state with a fresh short-lived
// context so the failure path survives whatever killed grading. Only
// status and feedback change; completed_at stays unset because the
// submission never completed.
func (s *SubmissionService) markFailed(ctx context.Context, submissionID string) {
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dbTimeout)
	defer cancel()

	feedback := appErr.New(appErr.GradingFailed).Error()
	upd := repository.StatusUpdate{
		To:       model.StatusFailed,
		Feedback: &feedback,
	}

	// The submission may have failed before or after entering running.
	for _, from := range []model.Status{model.StatusRunning, model.StatusQueued} {
		upd.From = from
		if err := s.repo.UpdateStatus(failCtx, submissionID, upd); err != nil {
			logger.Error(failCtx, "failed to mark submission failed",
				zap.String("submission_id", submissionID),
				zap.String("from", string(from)),
				zap.Error(err))
		}
	}
}

func (s *SubmissionService) transition(ctx context.Context, submissionID string, upd repository.StatusUpdate) error {
	updCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.UpdateStatus(updCtx, submissionID, upd)
}

func (s *SubmissionService) gradingDelay() time.Duration {
	if s.delayMax <= s.delayMin {
		return s.delayMin
	}
	return s.delayMin + time.Duration(rand.Int63n(int64(s.delayMax-s.delayMin)))
}

func (s *SubmissionService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.dbTimeout)
}
